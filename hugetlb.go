package cgroups

import (
	"path/filepath"
	"strconv"
	"strings"
)

type hugetlbController struct {
	controllerBase
}

func (h *hugetlbController) Apply(res *Resources) error {
	for _, page := range res.HugePages {
		file := strings.Join([]string{"hugetlb", page.PageSize, "limit_in_bytes"}, ".")
		if h.v2 {
			file = strings.Join([]string{"hugetlb", page.PageSize, "max"}, ".")
		}
		if err := writeValue(h.dir, file, strconv.FormatUint(page.Limit, 10)); err != nil {
			return err
		}
	}
	return nil
}

func (h *hugetlbController) Stat(stats *Stats) error {
	sizes, err := h.pageSizes()
	if err != nil {
		return err
	}
	out := make(map[string]HugetlbStat, len(sizes))
	for _, size := range sizes {
		var s HugetlbStat
		if h.v2 {
			if s.Usage, err = readUint(h.dir, "hugetlb."+size+".current"); err != nil {
				return err
			}
			if s.MaxUsage, err = readUint(h.dir, "hugetlb."+size+".max"); err != nil {
				return err
			}
			// hugetlb.<size>.events counts limit hits under the "max" key.
			kv, err := readKV(h.dir, "hugetlb."+size+".events")
			if err != nil {
				return err
			}
			s.Failcnt = kv["max"]
		} else {
			if s.Usage, err = readUint(h.dir, "hugetlb."+size+".usage_in_bytes"); err != nil {
				return err
			}
			if s.MaxUsage, err = readUint(h.dir, "hugetlb."+size+".max_usage_in_bytes"); err != nil {
				return err
			}
			if s.Failcnt, err = readUint(h.dir, "hugetlb."+size+".failcnt"); err != nil {
				return err
			}
		}
		out[size] = s
	}
	stats.Hugetlb = out
	return nil
}

// pageSizes discovers the page sizes this kernel exposes by listing the
// controller's own files rather than hardcoding a size table.
func (h *hugetlbController) pageSizes() ([]string, error) {
	suffix := ".limit_in_bytes"
	if h.v2 {
		suffix = ".max"
	}
	matches, err := filepath.Glob(filepath.Join(h.dir, "hugetlb.*"+suffix))
	if err != nil {
		return nil, err
	}
	var sizes []string
	for _, m := range matches {
		name := filepath.Base(m)
		size := strings.TrimSuffix(strings.TrimPrefix(name, "hugetlb."), suffix)
		if size != "" && !strings.Contains(size, ".") {
			sizes = append(sizes, size)
		}
	}
	return sizes, nil
}
