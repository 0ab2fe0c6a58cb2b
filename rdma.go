package cgroups

import (
	"bufio"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type rdmaController struct {
	controllerBase
}

func (r *rdmaController) Apply(res *Resources) error {
	// rdma.max takes one "device hca_handle=N hca_object=N" line per
	// device on both hierarchy versions.
	for _, e := range res.Rdma {
		if err := writeValue(r.dir, "rdma.max", e.String()); err != nil {
			return err
		}
	}
	return nil
}

func (r *rdmaController) Stat(stats *Stats) error {
	current, err := r.readEntries("rdma.current")
	if err != nil {
		return err
	}
	limit, err := r.readEntries("rdma.max")
	if err != nil {
		return err
	}
	if current == nil && limit == nil {
		return nil
	}
	stats.Rdma = &RdmaStat{
		Current: current,
		Limit:   limit,
	}
	return nil
}

func (r *rdmaController) readEntries(file string) ([]RdmaEntry, error) {
	f, err := os.Open(filepath.Join(r.dir, file))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []RdmaEntry
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		if line == "" {
			continue
		}
		e, err := parseRdmaLine(file, line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, s.Err()
}

// parseRdmaLine parses "mlx5_0 hca_handle=2 hca_object=2000"; either
// counter may be the "max" sentinel.
func parseRdmaLine(file, line string) (RdmaEntry, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return RdmaEntry{}, parseError(file, line)
	}
	e := RdmaEntry{Device: fields[0]}
	for _, kv := range fields[1:] {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return RdmaEntry{}, parseError(file, line)
		}
		var v uint32
		if value == "max" {
			v = math.MaxUint32
		} else {
			parsed, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return RdmaEntry{}, parseError(file, line)
			}
			v = uint32(parsed)
		}
		switch key {
		case "hca_handle":
			e.HcaHandles = v
		case "hca_object":
			e.HcaObjects = v
		}
	}
	return e, nil
}
