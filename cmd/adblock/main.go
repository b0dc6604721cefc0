// adblock is a command-line harness around the filtering engine: it compiles
// filter lists, evaluates request files against them and can keep the engine
// hot-swapped while the lists change on disk.
package main

import (
	"bufio"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/AdguardTeam/golibs/log"
	"github.com/fsnotify/fsnotify"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shieldkit/adblock"
	"github.com/shieldkit/adblock/basicclient"
	"github.com/shieldkit/adblock/regexcache"
	"github.com/shirou/gopsutil/v3/process"
	"gopkg.in/yaml.v3"
)

// Options -- console arguments
type Options struct {
	// Verbose - should we write debug-level log
	Verbose bool `short:"v" long:"verbose" description:"Verbose output (optional)." optional:"yes" optional-value:"true"`

	// LogOutput - path to the log file
	LogOutput string `short:"o" long:"output" description:"Path to the log file. If not set, it writes to stderr." default:""`

	// ConfigPath - path to the YAML config file
	ConfigPath string `short:"c" long:"config" description:"Path to the YAML configuration file."`

	// FilterLists - paths to the filter lists
	FilterLists []string `short:"f" long:"filter" description:"Path to the filter list. Can be specified multiple times."`

	// ResourcesPath - path to the resources JSON document
	ResourcesPath string `long:"resources" description:"Path to the resources JSON file."`

	// RequestsPath - path to a requests file to evaluate
	RequestsPath string `short:"r" long:"requests" description:"Path to a tab-separated requests file: url, resource type, tab host."`

	// SnapshotPath - where to write the serialized engine
	SnapshotPath string `long:"snapshot" description:"Write the serialized engine to this path after loading."`

	// Tags - rule-subset tags to enable
	Tags []string `long:"tag" description:"Rule-subset tag to enable. Can be specified multiple times."`

	// Watch - reload the engine when the filter lists change
	Watch bool `short:"w" long:"watch" description:"Watch the filter lists and hot-swap the engine on change." optional:"yes" optional-value:"true"`

	// MetricsAddr - address serving prometheus metrics
	MetricsAddr string `long:"metrics" description:"Address to serve /metrics on, e.g. 127.0.0.1:9100."`
}

// config is the optional YAML configuration. Console arguments win over it.
type config struct {
	DiscardPolicy regexcache.Policy `yaml:"discard_policy"`
	Resources     string            `yaml:"resources"`
	FilterLists   []string          `yaml:"filter_lists"`
	Tags          []string          `yaml:"tags"`
}

func main() {
	var options Options
	parser := flags.NewParser(&options, flags.Default)

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}

		os.Exit(1)
	}

	run(options)
}

func run(options Options) {
	if options.Verbose {
		log.SetLevel(log.DEBUG)
	}
	if options.LogOutput != "" {
		// nolint: gosec
		file, err := os.OpenFile(options.LogOutput, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("cannot create a log file: %s", err)
		}
		defer file.Close() //nolint
		log.SetOutput(file)
	}

	conf := loadConfig(options)

	engine := adblock.NewEngine(basicclient.Factory{})
	engine.SetDiscardPolicy(conf.DiscardPolicy)
	for _, tag := range conf.Tags {
		engine.EnableTag(tag, true)
	}

	reload(engine, conf)
	reportMemoryUsage()

	if options.SnapshotPath != "" {
		err := os.WriteFile(options.SnapshotPath, engine.Serialize(), 0644)
		if err != nil {
			log.Fatalf("cannot write snapshot: %s", err)
		}
	}

	if options.RequestsPath != "" {
		evaluateRequests(engine, options.RequestsPath)
	}

	if options.MetricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			log.Error("metrics server: %s", http.ListenAndServe(options.MetricsAddr, nil))
		}()
	}

	if !options.Watch && options.MetricsAddr == "" {
		return
	}

	if options.Watch {
		watcher := watchLists(engine, conf)
		defer watcher.Close() //nolint
	}

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)
	<-signalChannel
}

// loadConfig merges the YAML config file and the console arguments.
func loadConfig(options Options) (conf config) {
	if options.ConfigPath != "" {
		data, err := os.ReadFile(options.ConfigPath)
		if err != nil {
			log.Fatalf("cannot read config: %s", err)
		}

		err = yaml.Unmarshal(data, &conf)
		if err != nil {
			log.Fatalf("cannot parse config: %s", err)
		}
	}

	if len(options.FilterLists) > 0 {
		conf.FilterLists = options.FilterLists
	}
	if options.ResourcesPath != "" {
		conf.Resources = options.ResourcesPath
	}
	if len(options.Tags) > 0 {
		conf.Tags = options.Tags
	}

	return conf
}

// reload compiles the configured filter lists and swaps them into the
// engine.
func reload(engine *adblock.Engine, conf config) {
	var filters []byte
	for _, path := range conf.FilterLists {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Error("cannot read filter list %s: %s", path, err)

			continue
		}

		filters = append(filters, data...)
		filters = append(filters, '\n')
	}

	resourcesJSON := "[]"
	if conf.Resources != "" {
		data, err := os.ReadFile(conf.Resources)
		if err != nil {
			log.Fatalf("cannot read resources: %s", err)
		}
		resourcesJSON = string(data)
	}

	engine.Load(false, filters, resourcesJSON)
	log.Info("loaded %d filter lists, generation %s", len(conf.FilterLists), engine.DebugInfo().Generation)
}

// watchLists hot-swaps the engine whenever one of the filter lists changes.
func watchLists(engine *adblock.Engine, conf config) (watcher *fsnotify.Watcher) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatalf("cannot create watcher: %s", err)
	}

	for _, path := range conf.FilterLists {
		err = watcher.Add(path)
		if err != nil {
			log.Fatalf("cannot watch %s: %s", path, err)
		}
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
					log.Info("filter list %s changed, reloading", event.Name)
					reload(engine, conf)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				log.Error("watcher: %s", err)
			}
		}
	}()

	return watcher
}

// evaluateRequests reads a tab-separated requests file (url, resource type,
// tab host) and prints the match outcome for every line.
func evaluateRequests(engine *adblock.Engine, path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("cannot open requests file: %s", err)
	}
	defer f.Close() //nolint

	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			log.Error("malformed request line %q", line)

			continue
		}

		resType := adblock.ResourceTypeFromString(fields[1])
		res := engine.ShouldStartRequest(fields[0], resType, fields[2], false)

		outcome := "allow"
		switch {
		case res.DidMatchImportant,
			res.DidMatchRule && !res.DidMatchException:
			outcome = "block"
		case res.DidMatchException:
			outcome = "except"
		}

		log.Info("%s\t%s", outcome, fields[0])
	}

	if err = s.Err(); err != nil {
		log.Fatalf("cannot read requests file: %s", err)
	}
}

// reportMemoryUsage prints the RSS of the current process after the lists
// are compiled.
func reportMemoryUsage() {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}

	if mem, err := proc.MemoryInfo(); err == nil {
		log.Info("RSS after load: %d kB", mem.RSS/1024)
	}
}
