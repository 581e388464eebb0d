// Command cleanarchguard fails when a module breaks the layer rule
// domain <- services <- presentation, infrastructure. Cross-module imports are
// allowed only towards the modules listed as shared.
package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/roblaszczak/go-cleanarch/cleanarch"
	"gopkg.in/yaml.v3"
)

type layerAliases struct {
	Domain         []string `yaml:"domain"`
	Application    []string `yaml:"application"`
	Interfaces     []string `yaml:"interfaces"`
	Infrastructure []string `yaml:"infrastructure"`
}

type config struct {
	Version           int          `yaml:"version"`
	Root              string       `yaml:"root"`
	IgnoreTests       bool         `yaml:"ignore_tests"`
	IgnorePackages    []string     `yaml:"ignore_packages"`
	SharedModules     []string     `yaml:"shared_modules"`
	AllowedViolations []string     `yaml:"allow_violations"`
	Aliases           layerAliases `yaml:"aliases"`
}

var defaultAliases = layerAliases{
	Domain:         []string{"domain"},
	Application:    []string{"services"},
	Interfaces:     []string{"presentation"},
	Infrastructure: []string{"infrastructure", "testhelpers"},
}

func main() {
	var (
		configPath = flag.String("config", ".gocleanarch.yml", "path to the guard config")
		debug      = flag.Bool("debug", false, "print go-cleanarch debug output")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		log.Fatalf("resolve root: %v", err)
	}
	if *debug {
		cleanarch.Log.SetOutput(os.Stderr)
	}

	validator := cleanarch.NewValidator(cfg.layers())
	ok, errs, err := validator.Validate(root, cfg.IgnoreTests, cfg.IgnorePackages)
	if err != nil {
		log.Fatalf("go-cleanarch: %v", err)
	}

	violations := cfg.filter(errs)
	if !ok && len(violations) > 0 {
		for _, v := range violations {
			log.Println(v.Error())
		}
		log.Printf("%d layer violation(s)", len(violations))
		os.Exit(1)
	}
	log.Println("layers ok")
}

func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &config{Version: 1, Root: "modules", IgnoreTests: true}, nil
	}
	if err != nil {
		return nil, err
	}
	cfg := &config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	return cfg, nil
}

func (c *config) layers() map[string]cleanarch.Layer {
	out := map[string]cleanarch.Layer{}
	add := func(custom, defaults []string, layer cleanarch.Layer) {
		if len(custom) == 0 {
			custom = defaults
		}
		for _, alias := range custom {
			if alias = strings.TrimSpace(alias); alias != "" {
				out[alias] = layer
			}
		}
	}
	add(c.Aliases.Domain, defaultAliases.Domain, cleanarch.LayerDomain)
	add(c.Aliases.Application, defaultAliases.Application, cleanarch.LayerApplication)
	add(c.Aliases.Interfaces, defaultAliases.Interfaces, cleanarch.LayerInterfaces)
	add(c.Aliases.Infrastructure, defaultAliases.Infrastructure, cleanarch.LayerInfrastructure)
	return out
}

var crossModulePattern = regexp.MustCompile(`between ([\w-]+) and ([\w-]+) modules`)

// filter drops violations that involve a shared module or match an allowed pattern.
func (c *config) filter(errs []cleanarch.ValidationError) []cleanarch.ValidationError {
	shared := make(map[string]bool, len(c.SharedModules))
	for _, m := range c.SharedModules {
		if m = strings.TrimSpace(m); m != "" {
			shared[m] = true
		}
	}

	out := make([]cleanarch.ValidationError, 0, len(errs))
	for _, e := range errs {
		msg := e.Error()
		if m := crossModulePattern.FindStringSubmatch(msg); len(m) == 3 && (shared[m[1]] || shared[m[2]]) {
			continue
		}
		if c.allowed(msg) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (c *config) allowed(msg string) bool {
	for _, p := range c.AllowedViolations {
		if p != "" && strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
