package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"m-cpulimit/libcpulimit/constant"
	"m-cpulimit/libcpulimit/group"
	"m-cpulimit/libcpulimit/proc"
	"m-cpulimit/libcpulimit/sampler"

	"github.com/urfave/cli"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// m-cpulimit usage 命令
var UsageCommand = cli.Command{
	Name:      "usage",
	Usage:     `show the cpu usage of a process without limiting it`,
	UsageText: `m-cpulimit usage -pid PID [-i] [-interval 1s]`,
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "pid, p",
			Usage: "pid of the target process",
		},
		cli.BoolFlag{
			Name:  "include-children, i",
			Usage: "include the children of the target",
		},
		cli.DurationFlag{
			Name:  "interval",
			Value: time.Second,
			Usage: "sampling interval",
		},
		cli.IntFlag{
			Name:  "count, n",
			Usage: "stop after n samples, 0 means forever",
		},
	},

	Action: func(context *cli.Context) error {
		if context.Int("pid") <= 0 {
			return fmt.Errorf("missing target, use -pid")
		}
		if context.Duration("interval") <= 0 {
			return fmt.Errorf("invalid interval %v", context.Duration("interval"))
		}
		return showUsage(context.Int("pid"), context.Bool("include-children"), context.Duration("interval"), context.Int("count"))
	},
}

func showUsage(pid int, children bool, interval time.Duration, count int) error {
	src := proc.NewFS(constant.ProcRoot)
	g, err := group.New(src, pid, group.Options{Children: children, AllowThreads: true})
	if err != nil {
		return fmt.Errorf("watch process %d error: %v", pid, err)
	}
	s := sampler.New(src, proc.ClockTicks())

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	// 终端下原地刷新同一行
	redraw := term.IsTerminal(int(os.Stdout.Fd()))

	prev := s.Sample(g.Members(), sampler.Snapshot{}, time.Now()).Snapshot
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 0; count == 0 || n < count; n++ {
		select {
		case <-ctx.Done():
			if redraw {
				fmt.Println()
			}
			return nil
		case <-ticker.C:
		}

		if err := g.Refresh(); err != nil {
			if redraw {
				fmt.Println()
			}
			return fmt.Errorf("process %d: %v", pid, err)
		}
		res := s.Sample(g.Members(), prev, time.Now())
		prev = res.Snapshot

		line := fmt.Sprintf("pid %d: %6.2f%% cpu, %d processes", pid, res.Usage*100, g.Len())
		if redraw {
			fmt.Printf("\r\033[K%s", line)
		} else {
			fmt.Println(line)
		}
	}
	if redraw {
		fmt.Println()
	}
	return nil
}
