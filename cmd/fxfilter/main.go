// Command fxfilter is a one-shot CLI over a set of named Broken-Sessions
// and Executive-Report cuckoo filters. Each invocation restores a filter
// instance from its most recent snapshot and applies a single operation;
// after an add, or a delete that removed an entry, it writes a fresh
// snapshot back out when persistence is enabled (queries write none),
// since the filters themselves are in-memory structures with no server of
// their own.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"fxfilter/internal/filter"
	"fxfilter/internal/filter/brokensessions"
	"fxfilter/internal/filter/executivereport"
	"fxfilter/internal/logging"
	"fxfilter/internal/persistence"
	"fxfilter/pkg/config"
)

var (
	configPath = flag.String("config", "configs/fxfilter.yaml", "Path to configuration file")
	nodeID     = flag.String("node-id", "", "Unique node identifier")
)

func main() {
	flag.Parse()
	args := flag.Args()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *nodeID != "" {
		cfg.Node.ID = *nodeID
	}

	logger, err := logging.InitializeFromConfig(cfg.Node.ID, cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	ctx := logging.WithCorrelationID(context.Background(), logging.NewCorrelationID())

	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	if err := dispatch(ctx, cfg, args[0], args[1:]); err != nil {
		logging.Error(ctx, logging.ComponentCLI, args[0], "command failed", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: fxfilter -config <path> <command> [args...]

commands:
  bs-add     <filter> <key> <session_count>
  bs-query   <filter> <key>
  bs-delete  <filter> <key>
  er-add     <filter> <key> <country> <channel> <os> <day> <dflt>
  er-query   <filter> <key>
  er-delete  <filter> <key>`)
}

func dispatch(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	switch cmd {
	case "bs-add", "bs-query", "bs-delete":
		return runBrokenSessions(ctx, cfg, cmd, args)
	case "er-add", "er-query", "er-delete":
		return runExecutiveReport(ctx, cfg, cmd, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func findInstance(instances []config.FilterInstanceConfig, name string) (config.FilterInstanceConfig, bool) {
	for _, inst := range instances {
		if inst.Name == name {
			return inst, true
		}
	}
	return config.FilterInstanceConfig{}, false
}

func runBrokenSessions(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%s requires at least <filter> <key>", cmd)
	}
	name, key := args[0], args[1]
	inst, ok := findInstance(cfg.BrokenSessions, name)
	if !ok {
		return fmt.Errorf("no broken_sessions filter named %q configured", name)
	}

	mgr := persistence.NewManager(cfg.Persistence, name)
	f, err := restoreBrokenSessions(mgr, inst)
	if err != nil {
		return err
	}

	switch cmd {
	case "bs-add":
		if len(args) != 3 {
			return fmt.Errorf("bs-add requires <filter> <key> <session_count>")
		}
		sessionCount, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("session_count must be an integer: %w", err)
		}
		code, err := f.Add(key, sessionCount)
		if err != nil {
			return err
		}
		logging.Info(ctx, logging.ComponentBrokenSessions, logging.ActionAdd, "submitted session count", map[string]interface{}{
			"filter": name, "key": key, "code": code,
		})
		fmt.Println(code)
	case "bs-query":
		fmt.Println(f.Query(key))
		return nil
	case "bs-delete":
		deleted := f.Delete(key)
		fmt.Println(deleted)
		if !deleted {
			return nil
		}
	}

	return snapshotBrokenSessions(mgr, f, brokensessions.TypeTable, name)
}

func restoreBrokenSessions(mgr *persistence.Manager, inst config.FilterInstanceConfig) (*brokensessions.Filter, error) {
	f, err := brokensessions.New(inst.Items)
	if err != nil {
		return nil, fmt.Errorf("construct filter %q: %w", inst.Name, err)
	}

	script, _, err := mgr.Load()
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("load snapshot for %q: %w", inst.Name, err)
	}

	_, items, cnt, blob, err := filter.ParseReloadScript(script)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot for %q: %w", inst.Name, err)
	}
	if items != f.Items() {
		return nil, fmt.Errorf("snapshot for %q was sized for %d items, filter is configured for %d", inst.Name, items, f.Items())
	}
	if err := f.FromString(cnt, blob); err != nil {
		return nil, fmt.Errorf("restore snapshot for %q: %w", inst.Name, err)
	}
	return f, nil
}

func snapshotBrokenSessions(mgr *persistence.Manager, f *brokensessions.Filter, typeTable, varName string) error {
	if !mgr.Enabled() {
		return nil
	}
	script := filter.EmitReloadScript(varName, typeTable, f.Items(), f.Count(), f.Serialize())
	_, err := mgr.Create(script, time.Now())
	return err
}

func runExecutiveReport(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%s requires at least <filter> <key>", cmd)
	}
	name, key := args[0], args[1]
	inst, ok := findInstance(cfg.ExecutiveReports, name)
	if !ok {
		return fmt.Errorf("no executive_reports filter named %q configured", name)
	}

	mgr := persistence.NewManager(cfg.Persistence, name)
	f, err := restoreExecutiveReport(mgr, inst)
	if err != nil {
		return err
	}

	switch cmd {
	case "er-add":
		if len(args) != 7 {
			return fmt.Errorf("er-add requires <filter> <key> <country> <channel> <os> <day> <dflt>")
		}
		country, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("country must be an integer: %w", err)
		}
		channel, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("channel must be an integer: %w", err)
		}
		osVal, err := strconv.Atoi(args[4])
		if err != nil {
			return fmt.Errorf("os must be an integer: %w", err)
		}
		day, err := strconv.Atoi(args[5])
		if err != nil {
			return fmt.Errorf("day must be an integer: %w", err)
		}
		dflt, err := strconv.ParseBool(args[6])
		if err != nil {
			return fmt.Errorf("dflt must be a boolean: %w", err)
		}
		inserted, err := f.Add(key, country, channel, osVal, day, dflt)
		if err != nil {
			return err
		}
		logging.Info(ctx, logging.ComponentExecutiveReport, logging.ActionAdd, "submitted report entry", map[string]interface{}{
			"filter": name, "key": key, "inserted": inserted,
		})
		fmt.Println(inserted)
	case "er-query":
		fmt.Println(f.Query(key))
		return nil
	case "er-delete":
		deleted := f.Delete(key)
		fmt.Println(deleted)
		if !deleted {
			return nil
		}
	}

	return snapshotExecutiveReport(mgr, f, name)
}

func restoreExecutiveReport(mgr *persistence.Manager, inst config.FilterInstanceConfig) (*executivereport.Filter, error) {
	f, err := executivereport.New(inst.Items)
	if err != nil {
		return nil, fmt.Errorf("construct filter %q: %w", inst.Name, err)
	}

	script, _, err := mgr.Load()
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("load snapshot for %q: %w", inst.Name, err)
	}

	_, items, cnt, blob, err := filter.ParseReloadScript(script)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot for %q: %w", inst.Name, err)
	}
	if items != f.Items() {
		return nil, fmt.Errorf("snapshot for %q was sized for %d items, filter is configured for %d", inst.Name, items, f.Items())
	}
	if err := f.FromString(cnt, blob); err != nil {
		return nil, fmt.Errorf("restore snapshot for %q: %w", inst.Name, err)
	}
	return f, nil
}

func snapshotExecutiveReport(mgr *persistence.Manager, f *executivereport.Filter, varName string) error {
	if !mgr.Enabled() {
		return nil
	}
	script := filter.EmitReloadScript(varName, executivereport.TypeTable, f.Items(), f.Count(), f.Serialize())
	_, err := mgr.Create(script, time.Now())
	return err
}
