package main

import (
	"fmt"
	"os"
	"strconv"

	units "github.com/docker/go-units"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/resctl/cgroups"
)

func main() {
	app := cli.NewApp()
	app.Name = "cgctl"
	app.Usage = "inspect and manage control groups"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug output",
		},
		cli.BoolFlag{
			Name:  "systemd",
			Usage: "manage groups through systemd transient units",
		},
	}
	app.Before = func(context *cli.Context) error {
		if context.GlobalBool("debug") {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return nil
	}
	app.Commands = []cli.Command{
		createCommand,
		deleteCommand,
		applyCommand,
		addCommand,
		statCommand,
		freezeCommand,
		thawCommand,
		modeCommand,
	}
	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func hierarchy(context *cli.Context) (*cgroups.Hierarchy, error) {
	if context.GlobalBool("systemd") {
		return cgroups.DetectDelegated()
	}
	return cgroups.Detect()
}

var resourceFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "memory",
		Usage: "memory limit (e.g. 512m)",
	},
	cli.StringFlag{
		Name:  "memory-swap",
		Usage: "memory+swap limit (e.g. 1g)",
	},
	cli.Uint64Flag{
		Name:  "cpu-shares",
		Usage: "cpu shares (relative weight)",
	},
	cli.Int64Flag{
		Name:  "cpu-quota",
		Usage: "cpu cfs quota in usec",
	},
	cli.Uint64Flag{
		Name:  "cpu-period",
		Usage: "cpu cfs period in usec",
	},
	cli.StringFlag{
		Name:  "cpuset-cpus",
		Usage: "cpus the group may run on (e.g. 0-3)",
	},
	cli.StringFlag{
		Name:  "cpuset-mems",
		Usage: "memory nodes the group may use",
	},
	cli.Int64Flag{
		Name:  "pids-limit",
		Usage: "maximum number of processes",
	},
}

func resourcesFromFlags(context *cli.Context) (*cgroups.Resources, error) {
	res := &cgroups.Resources{}
	mem := &cgroups.Memory{}
	if v := context.String("memory"); v != "" {
		limit, err := units.RAMInBytes(v)
		if err != nil {
			return nil, fmt.Errorf("parse --memory: %w", err)
		}
		mem.Limit = &limit
		res.Memory = mem
	}
	if v := context.String("memory-swap"); v != "" {
		limit, err := units.RAMInBytes(v)
		if err != nil {
			return nil, fmt.Errorf("parse --memory-swap: %w", err)
		}
		mem.SwapLimit = &limit
		res.Memory = mem
	}
	cpu := &cgroups.CPU{
		Cpus: context.String("cpuset-cpus"),
		Mems: context.String("cpuset-mems"),
	}
	if context.IsSet("cpu-shares") {
		shares := context.Uint64("cpu-shares")
		cpu.Shares = &shares
	}
	if context.IsSet("cpu-quota") {
		quota := context.Int64("cpu-quota")
		cpu.Quota = &quota
	}
	if context.IsSet("cpu-period") {
		period := context.Uint64("cpu-period")
		cpu.Period = &period
	}
	if cpu.Shares != nil || cpu.Quota != nil || cpu.Period != nil || cpu.Cpus != "" || cpu.Mems != "" {
		res.CPU = cpu
	}
	if context.IsSet("pids-limit") {
		res.Pids = &cgroups.Pids{Max: context.Int64("pids-limit")}
	}
	return res, nil
}

var createCommand = cli.Command{
	Name:      "create",
	Usage:     "create a cgroup, optionally with initial limits",
	ArgsUsage: "<group>",
	Flags:     resourceFlags,
	Action: func(context *cli.Context) error {
		h, err := hierarchy(context)
		if err != nil {
			return err
		}
		res, err := resourcesFromFlags(context)
		if err != nil {
			return err
		}
		cg, err := cgroups.New(h, context.Args().First())
		if err != nil {
			return err
		}
		return cg.Create(res)
	},
}

var deleteCommand = cli.Command{
	Name:      "delete",
	Usage:     "delete a cgroup",
	ArgsUsage: "<group>",
	Action: func(context *cli.Context) error {
		h, err := hierarchy(context)
		if err != nil {
			return err
		}
		cg, err := cgroups.New(h, context.Args().First())
		if err != nil {
			return err
		}
		return cg.Delete()
	},
}

var applyCommand = cli.Command{
	Name:      "apply",
	Usage:     "apply resource limits to an existing cgroup",
	ArgsUsage: "<group>",
	Flags:     resourceFlags,
	Action: func(context *cli.Context) error {
		h, err := hierarchy(context)
		if err != nil {
			return err
		}
		res, err := resourcesFromFlags(context)
		if err != nil {
			return err
		}
		cg, err := cgroups.Load(h, context.Args().First())
		if err != nil {
			return err
		}
		return cg.Apply(res)
	},
}

var addCommand = cli.Command{
	Name:      "add",
	Usage:     "move a process into a cgroup",
	ArgsUsage: "<group> <pid>",
	Action: func(context *cli.Context) error {
		h, err := hierarchy(context)
		if err != nil {
			return err
		}
		pid, err := strconv.Atoi(context.Args().Get(1))
		if err != nil {
			return fmt.Errorf("parse pid: %w", err)
		}
		cg, err := cgroups.Load(h, context.Args().First())
		if err != nil {
			return err
		}
		return cg.AddProc(pid)
	},
}

var statCommand = cli.Command{
	Name:      "stat",
	Usage:     "show a cgroup's statistics",
	ArgsUsage: "<group>",
	Action: func(context *cli.Context) error {
		h, err := hierarchy(context)
		if err != nil {
			return err
		}
		cg, err := cgroups.Load(h, context.Args().First())
		if err != nil {
			return err
		}
		stats, err := cg.Stat()
		if stats == nil {
			return err
		}
		if err != nil {
			logrus.WithError(err).Warn("partial statistics")
		}
		printStats(stats)
		return nil
	},
}

func printStats(stats *cgroups.Stats) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Subsystem", "Metric", "Value"})
	if m := stats.Memory; m != nil {
		table.Append([]string{"memory", "usage", units.BytesSize(float64(m.Usage))})
		table.Append([]string{"memory", "limit", limitString(m.Limit)})
		table.Append([]string{"memory", "failcnt", strconv.FormatUint(m.Failcnt, 10)})
	}
	if c := stats.CPU; c != nil {
		table.Append([]string{"cpu", "usage_usec", strconv.FormatUint(c.Usage, 10)})
		table.Append([]string{"cpu", "throttled_periods", strconv.FormatUint(c.Throttling.ThrottledPeriods, 10)})
		if c.Cpus != "" {
			table.Append([]string{"cpuset", "cpus", c.Cpus})
		}
	}
	if p := stats.Pids; p != nil {
		table.Append([]string{"pids", "current", strconv.FormatUint(p.Current, 10)})
		table.Append([]string{"pids", "limit", limitString(p.Limit)})
	}
	if stats.Freezer != cgroups.Unknown {
		table.Append([]string{"freezer", "state", string(stats.Freezer)})
	}
	table.Render()
}

func limitString(v uint64) string {
	if v == ^uint64(0) {
		return "max"
	}
	return strconv.FormatUint(v, 10)
}

var freezeCommand = cli.Command{
	Name:      "freeze",
	Usage:     "suspend all tasks in a cgroup",
	ArgsUsage: "<group>",
	Action: func(context *cli.Context) error {
		h, err := hierarchy(context)
		if err != nil {
			return err
		}
		cg, err := cgroups.Load(h, context.Args().First())
		if err != nil {
			return err
		}
		return cg.Freeze()
	},
}

var thawCommand = cli.Command{
	Name:      "thaw",
	Usage:     "resume a frozen cgroup",
	ArgsUsage: "<group>",
	Action: func(context *cli.Context) error {
		h, err := hierarchy(context)
		if err != nil {
			return err
		}
		cg, err := cgroups.Load(h, context.Args().First())
		if err != nil {
			return err
		}
		return cg.Thaw()
	},
}

var modeCommand = cli.Command{
	Name:  "mode",
	Usage: "print the detected cgroup layout",
	Action: func(context *cli.Context) error {
		h, err := cgroups.Detect()
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", h.Kind())
		for _, s := range h.Subsystems() {
			fmt.Printf("  %s\n", s)
		}
		return nil
	},
}
