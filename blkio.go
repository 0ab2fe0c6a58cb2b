package cgroups

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type blkioController struct {
	controllerBase
}

// v1 throttle files and their v2 io.max keys.
var throttleFiles = []struct {
	file string
	key  string
	pick func(*BlkIO) []ThrottleDevice
}{
	{"blkio.throttle.read_bps_device", "rbps", func(b *BlkIO) []ThrottleDevice { return b.ThrottleReadBps }},
	{"blkio.throttle.write_bps_device", "wbps", func(b *BlkIO) []ThrottleDevice { return b.ThrottleWriteBps }},
	{"blkio.throttle.read_iops_device", "riops", func(b *BlkIO) []ThrottleDevice { return b.ThrottleReadIOPS }},
	{"blkio.throttle.write_iops_device", "wiops", func(b *BlkIO) []ThrottleDevice { return b.ThrottleWriteIOPS }},
}

func (b *blkioController) Apply(res *Resources) error {
	blkio := res.BlkIO
	if blkio == nil {
		return nil
	}
	if b.v2 {
		return b.applyUnified(blkio)
	}
	if blkio.Weight != nil {
		if err := writeValue(b.dir, "blkio.weight", strconv.FormatUint(uint64(*blkio.Weight), 10)); err != nil {
			return err
		}
	}
	for _, t := range throttleFiles {
		// Entries go out in insertion order so a later entry for the
		// same device wins, matching kernel semantics.
		for _, dev := range t.pick(blkio) {
			if err := writeValue(b.dir, t.file, dev.String()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *blkioController) applyUnified(blkio *BlkIO) error {
	if blkio.Weight != nil {
		if err := writeValue(b.dir, "io.bfq.weight", strconv.FormatUint(uint64(*blkio.Weight), 10)); err != nil {
			return err
		}
	}
	for _, t := range throttleFiles {
		for _, dev := range t.pick(blkio) {
			line := fmt.Sprintf("%d:%d %s=%d", dev.Major, dev.Minor, t.key, dev.Rate)
			if err := writeValue(b.dir, "io.max", line); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *blkioController) Stat(stats *Stats) error {
	out := &BlkioStat{}
	if b.v2 {
		weight, err := readUint(b.dir, "io.bfq.weight")
		if err != nil {
			return err
		}
		out.Weight = uint16(weight)
		if err := b.readIoStat(out); err != nil {
			return err
		}
		stats.Blkio = out
		return nil
	}
	weight, err := readUint(b.dir, "blkio.weight")
	if err != nil {
		return err
	}
	out.Weight = uint16(weight)
	if out.IoServiceBytes, err = b.readThrottleStat("blkio.throttle.io_service_bytes"); err != nil {
		return err
	}
	if out.IoServiced, err = b.readThrottleStat("blkio.throttle.io_serviced"); err != nil {
		return err
	}
	stats.Blkio = out
	return nil
}

// readThrottleStat parses the v1 multi-column "major:minor Op value"
// table, skipping the trailing Total line.
func (b *blkioController) readThrottleStat(file string) ([]BlkioEntry, error) {
	f, err := os.Open(filepath.Join(b.dir, file))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []BlkioEntry
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "Total" {
			continue
		}
		if len(fields) != 3 {
			return nil, parseError(file, line)
		}
		major, minor, err := splitDeviceNumber(fields[0])
		if err != nil {
			return nil, parseError(file, line)
		}
		v, err := parseUint(fields[2], file)
		if err != nil {
			return nil, parseError(file, line)
		}
		entries = append(entries, BlkioEntry{
			Major: major,
			Minor: minor,
			Op:    fields[1],
			Value: v,
		})
	}
	return entries, s.Err()
}

// readIoStat parses v2 io.stat lines of the form
// "major:minor rbytes=... wbytes=... rios=... wios=...", splitting byte
// counters into IoServiceBytes and operation counters into IoServiced so
// the shape matches the legacy throttle tables.
func (b *blkioController) readIoStat(out *BlkioStat) error {
	f, err := os.Open(filepath.Join(b.dir, "io.stat"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return parseError("io.stat", line)
		}
		major, minor, err := splitDeviceNumber(fields[0])
		if err != nil {
			return parseError("io.stat", line)
		}
		for _, kv := range fields[1:] {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				return parseError("io.stat", line)
			}
			v, err := parseUint(value, "io.stat")
			if err != nil {
				return parseError("io.stat", line)
			}
			e := BlkioEntry{Major: major, Minor: minor, Value: v}
			switch key {
			case "rbytes":
				e.Op = "Read"
				out.IoServiceBytes = append(out.IoServiceBytes, e)
			case "wbytes":
				e.Op = "Write"
				out.IoServiceBytes = append(out.IoServiceBytes, e)
			case "rios":
				e.Op = "Read"
				out.IoServiced = append(out.IoServiced, e)
			case "wios":
				e.Op = "Write"
				out.IoServiced = append(out.IoServiced, e)
			}
		}
	}
	return s.Err()
}
