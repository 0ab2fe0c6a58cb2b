package cgroups

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// netPrioController maps network interfaces to egress priorities. v1 only.
type netPrioController struct {
	controllerBase
}

func (n *netPrioController) Apply(res *Resources) error {
	net := res.Network
	if net == nil {
		return nil
	}
	for _, prio := range net.Priorities {
		entry := fmt.Sprintf("%s %d", prio.Interface, prio.Priority)
		if err := appendValue(n.dir, "net_prio.ifpriomap", entry); err != nil {
			return err
		}
	}
	return nil
}

func (n *netPrioController) Stat(stats *Stats) error {
	f, err := os.Open(filepath.Join(n.dir, "net_prio.ifpriomap"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	out := &NetPrioStat{}
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		if line == "" {
			continue
		}
		iface, prio, ok := strings.Cut(line, " ")
		if !ok {
			return parseError("net_prio.ifpriomap", line)
		}
		p, err := strconv.ParseUint(prio, 10, 32)
		if err != nil {
			return parseError("net_prio.ifpriomap", line)
		}
		out.Priorities = append(out.Priorities, NetPrioEntry{
			Interface: iface,
			Priority:  uint32(p),
		})
	}
	if err := s.Err(); err != nil {
		return err
	}
	stats.NetPrio = out
	return nil
}
