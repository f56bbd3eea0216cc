package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"beopsuny/internal/config"
	"beopsuny/internal/domain"
	"beopsuny/internal/lawdata"
	"beopsuny/internal/proxy"
	"beopsuny/internal/skill"
)

const defaultSkillSource = ".claude/skills/beopsuny"

const defaultBundleName = "beopsuny-skill.zip"

// Run dispatches the CLI subcommands. Fetch commands print JSON lines to
// stdout; diagnostics go to the logger on stderr.
func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using system environment variables")
	}

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		return errors.New("app: missing command")
	}

	command, rest := args[0], args[1:]
	switch command {
	case "press":
		return runPress(rest)
	case "expc":
		return runExpc(rest)
	case "bills":
		return runBills(rest)
	case "geo":
		return runGeo(rest)
	case "build-skill":
		return runBuildSkill(rest)
	case "init":
		return runInit(rest)
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("app: unknown command %q", command)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `beopsuny - Korean regulatory data fetcher

Usage:
  beopsuny press        [-url URL] [-n N]        fetch press-release RSS items
  beopsuny expc         [-query Q] [-display N]  search legal interpretation records
  beopsuny bills        [-name N] [-size N]      search legislative proposals
  beopsuny geo                                   show egress geolocation and proxy decision
  beopsuny build-skill  -oc-code OC [...]        package the assistant skill bundle
  beopsuny init         [-out PATH]              write a settings.yaml template

Common flags: -verbose
`)
}

func newFlagSet(name string) (*flag.FlagSet, *bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	verbose := fs.Bool("verbose", false, "Enable debug logging")
	return fs, verbose
}

func applyVerbosity(verbose bool) {
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func newClient() *proxy.Client {
	return proxy.NewClient(proxy.NewGeoResolver(nil))
}

func runPress(args []string) error {
	fs, verbose := newFlagSet("press")
	feedURL := fs.String("url", "", "RSS feed URL (defaults to press.rss_url in settings.yaml)")
	limit := fs.Int("n", 0, "Maximum number of items (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	applyVerbosity(*verbose)

	target := *feedURL
	if target == "" {
		target = config.Get().Press.RSSURL
	}
	if target == "" {
		return errors.New("app: no RSS URL configured (pass -url or set press.rss_url)")
	}

	items, err := lawdata.FetchPress(context.Background(), newClient(), target, *limit)
	if err != nil {
		return err
	}
	return printJSONLines(os.Stdout, items)
}

func runExpc(args []string) error {
	fs, verbose := newFlagSet("expc")
	query := fs.String("query", "", "Search term")
	display := fs.Int("display", 0, "Number of results (defaults to api.default_display)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	applyVerbosity(*verbose)

	records, err := lawdata.SearchInterpretations(context.Background(), newClient(), *query, *display)
	if err != nil {
		return err
	}
	return printJSONLines(os.Stdout, records)
}

func runBills(args []string) error {
	fs, verbose := newFlagSet("bills")
	name := fs.String("name", "", "Bill name filter")
	size := fs.Int("size", 0, "Page size (defaults to api.default_display)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	applyVerbosity(*verbose)

	bills, err := lawdata.SearchBills(context.Background(), newClient(), *name, *size)
	if err != nil {
		return err
	}
	return printJSONLines(os.Stdout, bills)
}

// geoReport is the `geo` command output.
type geoReport struct {
	domain.GeoInfo
	Overseas  bool       `json:"overseas"`
	ProxyKind proxy.Kind `json:"proxy_kind"`
}

func runGeo(args []string) error {
	fs, verbose := newFlagSet("geo")
	if err := fs.Parse(args); err != nil {
		return err
	}
	applyVerbosity(*verbose)

	ctx := context.Background()
	client := newClient()

	report := geoReport{
		GeoInfo:   client.Geo().Resolve(ctx),
		Overseas:  client.Geo().IsOverseas(ctx),
		ProxyKind: proxy.ResolveConfig().Kind,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func runBuildSkill(args []string) error {
	fs, verbose := newFlagSet("build-skill")
	ocCode := fs.String("oc-code", "", "law.go.kr OC code (required)")
	assemblyKey := fs.String("assembly-key", "", "open.assembly.go.kr API key (optional)")
	source := fs.String("source", defaultSkillSource, "Skill source directory")
	output := fs.String("out", defaultBundleName, "Output zip path")
	force := fs.Bool("force", false, "Overwrite an existing bundle")
	if err := fs.Parse(args); err != nil {
		return err
	}
	applyVerbosity(*verbose)

	return skill.Build(skill.BuildOptions{
		SourceDir:      *source,
		OutputPath:     *output,
		OCCode:         *ocCode,
		AssemblyAPIKey: *assemblyKey,
		Force:          *force,
	})
}

func runInit(args []string) error {
	fs, verbose := newFlagSet("init")
	output := fs.String("out", config.SettingsPath(), "Settings template path")
	force := fs.Bool("force", false, "Overwrite an existing settings file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	applyVerbosity(*verbose)

	if !*force {
		if _, err := os.Stat(*output); err == nil {
			return fmt.Errorf("app: %s already exists (use -force to overwrite)", *output)
		}
	}

	if err := config.WriteDefault(*output); err != nil {
		return err
	}
	log.Info("Settings template written", "path", *output)
	return nil
}

func printJSONLines[T any](w io.Writer, items []T) error {
	encoder := json.NewEncoder(w)
	for _, item := range items {
		if err := encoder.Encode(item); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
	}
	return nil
}
