// internal/platform/config/config.go
package config

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
)

// Modos de ejecución del binario.
const (
	ModeServe    = "serve"
	ModeScan     = "scan"
	ModeProbe    = "probe"
	ModeExecTool = "exec-tool"
	ModeVersion  = "version"
)

type Config struct {
	// Modo de ejecución (primer argumento posicional, "serve" por defecto).
	Mode string `mapstructure:"-" json:"mode"`

	// App
	LogLevel string `mapstructure:"log_level"`

	// Modo scan: dominio objetivo y filtro opcional de herramientas.
	Target    string   `mapstructure:"target"`
	OnlyTools []string `mapstructure:"only_tools"`

	// Modo scan: exportar los resultados al terminar (vacío = no exportar).
	Output string `mapstructure:"output"`
	Format string `mapstructure:"format"`

	// Modo probe: un hostname suelto o un fichero con uno por línea.
	// Ambos vacíos sondea todo lo almacenado.
	Host      string `mapstructure:"host"`
	HostsFile string `mapstructure:"hosts_file"`

	// Modo exec-tool: scan y herramienta a ejecutar en el proceso hijo.
	ScanID   uint   `mapstructure:"scan"`
	ToolName string `mapstructure:"tool"`

	Database Database `mapstructure:"database"`
	Server   Server   `mapstructure:"server"`
	Scans    Scans    `mapstructure:"scans"`
	Probes   Probes   `mapstructure:"probes"`
	Tools    Tools    `mapstructure:"tools"`
}

type Database struct {
	// Driver: "postgres" o "sqlite".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type Server struct {
	Addr string `mapstructure:"addr"`
}

type Scans struct {
	// Intervalo de sondeo del flag de stop y de procesos hijos.
	PollIntervalMS int `mapstructure:"poll_interval_ms"`
	// Ejecutar pipelines en un proceso hijo re-ejecutando este binario.
	IsolatePipelines bool `mapstructure:"isolate_pipelines"`
	// Máximo de líneas de salida retenidas por scan.
	OutputCap int `mapstructure:"output_cap"`
}

type Probes struct {
	TimeoutS int  `mapstructure:"timeout"`
	Workers  int  `mapstructure:"workers"`
	Retries  int  `mapstructure:"retries"`
	JobTTLS  int  `mapstructure:"job_ttl"`
	Auto     bool `mapstructure:"auto"`
}

type Tools struct {
	// Ruta al catálogo YAML de herramientas.
	ConfigPath string `mapstructure:"config"`
}

// DefaultConfig retorna una configuración por defecto.
func DefaultConfig() Config {
	return Config{
		Mode:     ModeServe,
		LogLevel: "info",

		Database: Database{
			Driver: "postgres",
			DSN:    "host=localhost user=subsentry password=subsentry dbname=subsentry port=5432 sslmode=disable",
		},
		Server: Server{
			Addr: ":8080",
		},
		Scans: Scans{
			PollIntervalMS:   500,
			IsolatePipelines: true,
			OutputCap:        10000,
		},
		Probes: Probes{
			TimeoutS: 8,
			Workers:  10,
			Retries:  1,
			JobTTLS:  3600,
			Auto:     true,
		},
		Tools: Tools{
			ConfigPath: "config/tools.yaml",
		},
	}
}

// Load inicializa la configuración: defaults -> fichero -> ENV -> FLAGS
// (los flags tienen prioridad). Gestiona --help y --version internamente.
func Load(version, commit, date string) (Config, error) {
	cfg, help, err := LoadFrom(os.Args[1:])
	if err != nil {
		return Config{}, err
	}
	if help {
		PrintHelp()
	}
	if cfg.Mode == ModeVersion {
		PrintVersion(version, commit, date)
	}
	return cfg, nil
}

// LoadFrom construye la configuración a partir de args. Separada de Load para
// poder testearla sin tocar os.Args ni os.Exit.
func LoadFrom(args []string) (Config, bool, error) {
	mode, rest := splitMode(args)

	fs := pflag.NewFlagSet("subsentry", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.Usage = func() {} // la ayuda la imprime PrintHelp

	fs.StringP("config", "c", "", "Ruta al fichero de configuración YAML")
	fs.String("log-level", "", "Nivel de log (debug|info|warn|error)")
	fs.StringP("target", "t", "", "Dominio objetivo (modo scan)")
	fs.StringSlice("tools", nil, "Ejecutar solo estas herramientas (modo scan)")
	fs.StringP("output", "o", "", "Exportar los resultados a este fichero (modo scan)")
	fs.StringP("format", "f", "", "Formato de exportación: txt|json|csv (modo scan)")
	fs.String("host", "", "Hostname a sondear (modo probe)")
	fs.String("file", "", "Fichero con hostnames, uno por línea (modo probe)")
	fs.Uint("scan", 0, "ID del scan (modo exec-tool)")
	fs.String("tool", "", "Nombre de la herramienta (modo exec-tool)")
	fs.String("domain", "", "Dominio del scan (modo exec-tool)")
	fs.String("db.driver", "", "Driver de base de datos (postgres|sqlite)")
	fs.String("db.dsn", "", "DSN de la base de datos")
	fs.String("addr", "", "Dirección de escucha del servidor HTTP")
	fs.String("tools.config", "", "Ruta al catálogo de herramientas")
	fs.Bool("no-isolate", false, "Ejecutar pipelines en el propio proceso")
	fs.Int("probe.workers", 0, "Workers concurrentes de probing")
	fs.Int("probe.timeout", 0, "Timeout de probe en segundos")
	fs.BoolP("version", "v", false, "Imprimir versión y salir")
	helpFlag := fs.BoolP("help", "h", false, "Mostrar esta ayuda")

	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return Config{Mode: mode}, true, nil
		}
		return Config{}, false, errors.Wrap(err, "parsing flags")
	}
	if *helpFlag {
		return Config{Mode: mode}, true, nil
	}
	if v, _ := fs.GetBool("version"); v {
		mode = ModeVersion
	}

	vp := viper.New()
	setDefaults(vp)

	// Fichero de configuración: explícito via --config o buscado en rutas
	// conocidas. Su ausencia no es un error.
	if path, _ := fs.GetString("config"); path != "" {
		vp.SetConfigFile(path)
		if err := vp.ReadInConfig(); err != nil {
			return Config{}, false, errors.Wrapf(err, "reading config file %s", path)
		}
	} else {
		vp.SetConfigName("subsentry")
		vp.SetConfigType("yaml")
		vp.AddConfigPath(".")
		vp.AddConfigPath("$HOME/.config/subsentry")
		vp.AddConfigPath("/etc/subsentry")
		if err := vp.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, false, errors.Wrap(err, "reading config file")
			}
		}
	}

	// ENV con prefijo SUBSENTRY_ (p.ej. SUBSENTRY_DATABASE_DSN).
	vp.SetEnvPrefix("SUBSENTRY")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	// Flags sobre claves viper (solo si fueron establecidos).
	bindings := map[string]string{
		"log-level":     "log_level",
		"target":        "target",
		"domain":        "target",
		"tools":         "only_tools",
		"output":        "output",
		"format":        "format",
		"host":          "host",
		"file":          "hosts_file",
		"scan":          "scan",
		"tool":          "tool",
		"db.driver":     "database.driver",
		"db.dsn":        "database.dsn",
		"addr":          "server.addr",
		"tools.config":  "tools.config",
		"probe.workers": "probes.workers",
		"probe.timeout": "probes.timeout",
	}
	for flagName, key := range bindings {
		if f := fs.Lookup(flagName); f != nil && f.Changed {
			if err := vp.BindPFlag(key, f); err != nil {
				return Config{}, false, errors.Wrapf(err, "binding flag %s", flagName)
			}
		}
	}
	if f := fs.Lookup("no-isolate"); f != nil && f.Changed {
		vp.Set("scans.isolate_pipelines", false)
	}

	var cfg Config
	if err := vp.Unmarshal(&cfg); err != nil {
		return Config{}, false, errors.Wrap(err, "unmarshaling config")
	}
	cfg.Mode = mode

	normalize(&cfg)
	return cfg, false, nil
}

// splitMode extrae el modo (primer argumento no-flag) del resto de args.
func splitMode(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return ModeServe, args
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("target", "")
	v.SetDefault("only_tools", []string{})
	v.SetDefault("output", "")
	v.SetDefault("format", "txt")
	v.SetDefault("host", "")
	v.SetDefault("hosts_file", "")
	v.SetDefault("scan", 0)
	v.SetDefault("tool", "")
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("scans.poll_interval_ms", d.Scans.PollIntervalMS)
	v.SetDefault("scans.isolate_pipelines", d.Scans.IsolatePipelines)
	v.SetDefault("scans.output_cap", d.Scans.OutputCap)
	v.SetDefault("probes.timeout", d.Probes.TimeoutS)
	v.SetDefault("probes.workers", d.Probes.Workers)
	v.SetDefault("probes.retries", d.Probes.Retries)
	v.SetDefault("probes.job_ttl", d.Probes.JobTTLS)
	v.SetDefault("probes.auto", d.Probes.Auto)
	v.SetDefault("tools.config", d.Tools.ConfigPath)
}

func normalize(c *Config) {
	c.Target = strings.TrimSpace(strings.ToLower(strings.TrimSuffix(c.Target, ".")))
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format == "" {
		c.Format = "txt"
	}
	c.Host = strings.TrimSpace(strings.ToLower(c.Host))
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Scans.PollIntervalMS < 50 {
		c.Scans.PollIntervalMS = 500
	}
	if c.Scans.OutputCap < 100 {
		c.Scans.OutputCap = 10000
	}
	if c.Probes.TimeoutS < 1 {
		c.Probes.TimeoutS = 8
	}
	if c.Probes.Workers < 1 {
		c.Probes.Workers = 1
	}
	if c.Probes.Retries < 0 {
		c.Probes.Retries = 0
	}
	if c.Probes.JobTTLS < 60 {
		c.Probes.JobTTLS = 3600
	}
	if c.Tools.ConfigPath == "" {
		c.Tools.ConfigPath = "config/tools.yaml"
	}
}

// Validate comprueba los requisitos del modo seleccionado.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeServe, ModeProbe, ModeVersion:
		return nil
	case ModeScan:
		if c.Target == "" {
			return errors.Wrap(errors.ErrInvalidInput, "scan mode requires --target")
		}
		return nil
	case ModeExecTool:
		if c.ScanID == 0 || c.ToolName == "" {
			return errors.Wrap(errors.ErrInvalidInput, "exec-tool mode requires --scan and --tool")
		}
		return nil
	default:
		return errors.Wrapf(errors.ErrInvalidInput, "unknown mode %q", c.Mode)
	}
}

// ToJSON serializa la configuración a JSON (útil para debugging).
func (c Config) ToJSON() (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Helpers de duración.

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Scans.PollIntervalMS) * time.Millisecond
}

func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probes.TimeoutS) * time.Second
}

func (c Config) ProbeJobTTL() time.Duration {
	return time.Duration(c.Probes.JobTTLS) * time.Second
}
