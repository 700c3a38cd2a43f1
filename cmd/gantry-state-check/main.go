// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gantry-project/gantry/lib/schema"
	"github.com/gantry-project/gantry/lib/version"
	"github.com/gantry-project/gantry/registry"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Handle --version before anything else.
	for _, argument := range os.Args[1:] {
		if argument == "--version" {
			fmt.Printf("gantry-state-check %s\n", version.Info())
			return 0
		}
	}

	arguments, err := parseArguments(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		return 2
	}

	snapshot, err := loadSnapshot(context.Background(), arguments)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	matched, detail := evaluate(snapshot, arguments, time.Now())
	if matched {
		return 0
	}

	fmt.Fprintf(os.Stderr, "condition not met: %s\n", detail)
	return 1
}

// arguments holds the parsed command-line arguments.
type arguments struct {
	registryPath string
	driver       string

	// Exactly one of these conditions is set.
	hasMember  string
	hasCluster string
	minMembers int
	maxMembers int
	maxAge     time.Duration

	// Which condition was specified.
	condition string
}

func parseArguments(args []string) (arguments, error) {
	result := arguments{driver: registry.DriverFile}

	for i := 0; i < len(args); i++ {
		flag := args[i]
		if i+1 >= len(args) {
			return arguments{}, fmt.Errorf("flag %s requires a value", flag)
		}
		value := args[i+1]
		i++

		switch flag {
		case "--registry":
			result.registryPath = value
		case "--driver":
			result.driver = value
		case "--has-member":
			result.hasMember = value
			result.condition = "has_member"
		case "--has-cluster":
			result.hasCluster = value
			result.condition = "has_cluster"
		case "--min-members":
			n, err := strconv.Atoi(value)
			if err != nil {
				return arguments{}, fmt.Errorf("invalid --min-members value %q", value)
			}
			result.minMembers = n
			result.condition = "min_members"
		case "--max-members":
			n, err := strconv.Atoi(value)
			if err != nil {
				return arguments{}, fmt.Errorf("invalid --max-members value %q", value)
			}
			result.maxMembers = n
			result.condition = "max_members"
		case "--max-age":
			age, err := time.ParseDuration(value)
			if err != nil {
				return arguments{}, fmt.Errorf("invalid --max-age value %q", value)
			}
			result.maxAge = age
			result.condition = "max_age"
		default:
			return arguments{}, fmt.Errorf("unknown flag: %s", flag)
		}
	}

	if result.registryPath == "" {
		return arguments{}, fmt.Errorf("--registry is required")
	}
	if result.condition == "" {
		return arguments{}, fmt.Errorf("exactly one condition required: --has-member, --has-cluster, --min-members, --max-members, or --max-age")
	}

	return result, nil
}

// loadSnapshot opens the registry read-only and returns the latest
// persisted snapshot. A registry that has never persisted is an
// error: there is nothing to evaluate conditions against.
func loadSnapshot(ctx context.Context, args arguments) (*schema.StateSnapshot, error) {
	store, err := registry.Open(registry.Config{
		Driver:   args.driver,
		Path:     args.registryPath,
		ReadOnly: true,
	})
	if err != nil {
		return nil, err
	}
	defer store.Close()

	snapshot, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, fmt.Errorf("no snapshot has been persisted at %s", args.registryPath)
	}
	return snapshot, nil
}

// evaluate checks the condition against the snapshot. Returns whether
// it matched and, when it did not, a description of the mismatch.
func evaluate(snapshot *schema.StateSnapshot, args arguments, now time.Time) (bool, string) {
	switch args.condition {
	case "has_member":
		for _, member := range snapshot.Members {
			if member.MemberID == args.hasMember {
				return true, ""
			}
		}
		return false, fmt.Sprintf("member %q not in snapshot (%d members)", args.hasMember, len(snapshot.Members))
	case "has_cluster":
		for _, cluster := range snapshot.Clusters {
			if cluster.ClusterID == args.hasCluster {
				return true, ""
			}
		}
		return false, fmt.Sprintf("cluster %q not in snapshot (%d clusters)", args.hasCluster, len(snapshot.Clusters))
	case "min_members":
		if len(snapshot.Members) >= args.minMembers {
			return true, ""
		}
		return false, fmt.Sprintf("snapshot has %d members, want at least %d", len(snapshot.Members), args.minMembers)
	case "max_members":
		if len(snapshot.Members) <= args.maxMembers {
			return true, ""
		}
		return false, fmt.Sprintf("snapshot has %d members, want at most %d", len(snapshot.Members), args.maxMembers)
	case "max_age":
		age := now.Sub(time.UnixMilli(snapshot.TakenAt))
		if age <= args.maxAge {
			return true, ""
		}
		return false, fmt.Sprintf("snapshot is %s old, want at most %s", age.Round(time.Second), args.maxAge)
	default:
		return false, "no condition"
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "\nusage: gantry-state-check --registry PATH [--driver file|sqlite] CONDITION\n")
	fmt.Fprintf(os.Stderr, "\nconditions (exactly one required):\n")
	fmt.Fprintf(os.Stderr, "  --has-member ID     snapshot contains the member\n")
	fmt.Fprintf(os.Stderr, "  --has-cluster ID    snapshot contains the cluster\n")
	fmt.Fprintf(os.Stderr, "  --min-members N     snapshot has at least N members\n")
	fmt.Fprintf(os.Stderr, "  --max-members N     snapshot has at most N members\n")
	fmt.Fprintf(os.Stderr, "  --max-age DURATION  snapshot was taken within DURATION of now\n")
	fmt.Fprintf(os.Stderr, "\nexit codes:\n")
	fmt.Fprintf(os.Stderr, "  0  condition matched\n")
	fmt.Fprintf(os.Stderr, "  1  condition did not match\n")
	fmt.Fprintf(os.Stderr, "  2  error\n")
}
