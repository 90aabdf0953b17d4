package obsdb

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MigrateHelp is printed by the migrate subcommand for "help" and on bad
// usage.
const MigrateHelp = `Usage: bgcube migrate [-index path] <action> [args]

Actions:
  up                 apply every pending migration
  down               roll back the most recent migration
  status             show the schema version and dirty flag
  version <n>        migrate up or down to version n
  force <n>          set the version without running migrations (recovery only)
  help               show this help
`

// RunMigrateCommand dispatches one migrate action against the index at
// dbPath. force asks for confirmation on in; all output goes to out.
func RunMigrateCommand(args []string, dbPath string, in io.Reader, out io.Writer) error {
	if len(args) < 1 {
		fmt.Fprint(out, MigrateHelp)
		return fmt.Errorf("missing migrate action")
	}
	action := args[0]
	if action == "help" {
		fmt.Fprint(out, MigrateHelp)
		return nil
	}

	needsArg := action == "version" || action == "force"
	if needsArg && len(args) < 2 {
		return fmt.Errorf("usage: bgcube migrate %s <version_number>", action)
	}
	var target int
	if needsArg {
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		target = v
	}

	switch action {
	case "up", "down", "status", "version", "force":
	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n\n", action)
		fmt.Fprint(out, MigrateHelp)
		return fmt.Errorf("unknown migrate action %q", action)
	}

	database, err := Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to index: %w", err)
	}
	defer database.Close()

	switch action {
	case "up":
		if err := database.MigrateUp(); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ All migrations applied successfully")
	case "down":
		if err := database.MigrateDown(); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ Migration rolled back successfully")
	case "status":
		return printStatus(database, out)
	case "version":
		if err := database.MigrateTo(uint(target)); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Migrated to version %d successfully\n", target)
	case "force":
		fmt.Fprintf(out, "⚠️  WARNING: Forcing migration version to %d\n", target)
		fmt.Fprintln(out, "This should only be used to recover from a dirty migration state.")
		fmt.Fprint(out, "Continue? [y/N]: ")
		answer, _ := bufio.NewReader(in).ReadString('\n')
		if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
			fmt.Fprintln(out, "Aborted")
			return nil
		}
		if err := database.MigrateForce(target); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Migration version forced to %d\n", target)
	}

	if action != "force" {
		return printVersion(database, out)
	}
	return nil
}

func printVersion(database *DB, out io.Writer) error {
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func printStatus(database *DB, out io.Writer) error {
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	latest, err := LatestVersion()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", version)
	fmt.Fprintf(out, "Latest version: %d\n", latest)
	fmt.Fprintf(out, "Dirty: %v\n", dirty)
	if version < latest {
		fmt.Fprintf(out, "Pending migrations: %d\n", latest-version)
	}
	if dirty {
		fmt.Fprintln(out, "\n⚠️  WARNING: Index is in a dirty state!")
		fmt.Fprintln(out, "A migration failed mid-execution. Inspect the index, then run:")
		fmt.Fprintln(out, "  bgcube migrate force <version>")
	}
	return nil
}
