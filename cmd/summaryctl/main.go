package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/phonefarm/summarybot/internal/config"
	"github.com/phonefarm/summarybot/internal/logger"
	"github.com/phonefarm/summarybot/internal/report"
)

func main() {
	var (
		cfgPath  string
		dateArg  string
		filePath string
		channel  string
		compact  bool
	)
	flag.StringVar(&cfgPath, "config", os.Getenv("CONFIG_PATH"), "path to config file")
	flag.StringVar(&dateArg, "date", "", "target day (today, yesterday, a weekday, \"July 8\", 7/8 or 2025-07-08)")
	flag.StringVar(&filePath, "file", "", "channel transcript file to parse")
	flag.StringVar(&channel, "channel", "phone-1", "channel name the transcript came from")
	flag.BoolVar(&compact, "compact", false, "print the compact machine form instead of the report")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	loc, err := time.LoadLocation(cfg.Run.Timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load timezone: %v\n", err)
		os.Exit(1)
	}

	targetDate := ""
	if dateArg != "" {
		targetDate, err = report.ResolveDayArgument(dateArg, time.Now().In(loc))
		if err != nil {
			fmt.Fprintf(os.Stderr, "resolve date: %v\n", err)
			os.Exit(1)
		}
	}

	if filePath == "" {
		if targetDate != "" {
			fmt.Println(targetDate)
			return
		}
		fmt.Fprintln(os.Stderr, "pass -date to resolve a day token, or -file to analyze a transcript")
		os.Exit(1)
	}
	raw, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read transcript: %v\n", err)
		os.Exit(1)
	}

	pipeline := report.NewPipeline(logger.L)
	msgs := []report.MessageRecord{{Text: string(raw), Timestamp: time.Now().In(loc)}}
	scheduleText, finalText := pipeline.Extract(msgs, targetDate)
	if scheduleText == "" && finalText == "" {
		fmt.Fprintln(os.Stderr, "no schedule or final update found in transcript")
		os.Exit(1)
	}

	rep := pipeline.BuildChannelReport(channel, scheduleText, finalText)
	reports := []report.ChannelReport{rep}
	if compact {
		fmt.Println(report.FormatCompact(reports))
		return
	}
	fmt.Println(report.FormatDirect(reports))
}
