package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"vizdemo/common"
	"vizdemo/core/demo"
)

const (
	envPrefix  = "vizdemo"
	envCfgPath = "VIZDEMO_CFG_PATH"
	configName = "vizdemo_config"
)

type HTTPConfig struct {
	Listen       string
	StaticDir    string
	AllowOrigins string
	// SessionIdle drops sessions untouched for this long; 0 keeps them
	// until deleted.
	SessionIdle time.Duration
}

type GRPCConfig struct {
	Listen            string
	KeepaliveTime     time.Duration
	KeepaliveTimeout  time.Duration
	ConnectionTimeout time.Duration
}

type KPIConfig struct {
	DataPath string
}

type LocalConfig struct {
	// Path is the config file that was read, empty when running on defaults.
	Path string

	Log  *common.LogConfig
	HTTP HTTPConfig
	GRPC GRPCConfig
	Demo demo.Config
	KPI  KPIConfig
}

func setDefaults(v *viper.Viper) {
	d := demo.DefaultConfig()

	v.SetDefault("log.mode", common.LOG_MODE_DEV)
	v.SetDefault("log.level", "")
	v.SetDefault("log.path", "")

	v.SetDefault("http.listen", ":8080")
	v.SetDefault("http.static", "./web")
	v.SetDefault("http.origins", "*")
	v.SetDefault("http.session_idle", 30*time.Minute)

	v.SetDefault("grpc.listen", ":9090")
	v.SetDefault("grpc.keepalive_time", 2*time.Hour)
	v.SetDefault("grpc.keepalive_timeout", 20*time.Second)
	v.SetDefault("grpc.connection_timeout", 5*time.Second)

	v.SetDefault("demo.linear_container", d.LinearContainer)
	v.SetDefault("demo.logistic_container", d.LogisticContainer)
	v.SetDefault("demo.linear_epochs", d.LinearEpochs)
	v.SetDefault("demo.logistic_epochs", d.LogisticEpochs)
	v.SetDefault("demo.logistic_points", d.LogisticPoints)
	v.SetDefault("demo.grid_resolution", d.GridResolution)
	v.SetDefault("demo.linear_learning_rate", d.LinearLearningRate)
	v.SetDefault("demo.logistic_learning_rate", d.LogisticLearningRate)
	v.SetDefault("demo.batch_size", d.BatchSize)
	v.SetDefault("demo.fit_retry", false)
	v.SetDefault("demo.seed", 0)

	v.SetDefault("kpi.data", "./data.json")
}

// InitLocalConfig reads vizdemo_config.yaml. The --config flag wins;
// otherwise the file is looked up in VIZDEMO_CFG_PATH (or the working
// directory) and a missing file there means built-in defaults. Every key can
// be overridden from the environment, e.g. VIZDEMO_HTTP_LISTEN.
func InitLocalConfig(cmd *cobra.Command) (*LocalConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	setDefaults(v)

	flag := cmd.Flags().Lookup("config")
	if flag == nil {
		return nil, errors.New("cmd no set config flag")
	}
	cmdSetConfigFile := flag.Value.String()

	altPath := os.Getenv(envCfgPath)
	if altPath == "" {
		altPath = "."
	}
	v.AddConfigPath(altPath)
	v.SetConfigName(configName)
	if cmdSetConfigFile != "" {
		v.SetConfigFile(cmdSetConfigFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cmdSetConfigFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*LocalConfig, error) {
	lc := &LocalConfig{Path: v.ConfigFileUsed()}

	mode := strings.ToUpper(v.GetString("log.mode"))
	if mode != common.LOG_MODE_DEV && mode != common.LOG_MODE_PROD {
		return nil, errors.Errorf("log.mode must be DEV or PROD, got %q", mode)
	}
	lc.Log = common.DefaultLogConfig(mode == common.LOG_MODE_DEV)
	if lvl := v.GetString("log.level"); lvl != "" {
		lc.Log.LogLevel = common.ParseLogLevel(lvl)
	}
	if p := v.GetString("log.path"); p != "" {
		lc.Log.LogPath = p
	}
	if v.IsSet("log.console") {
		lc.Log.LogInConsole = v.GetBool("log.console")
	}
	if v.IsSet("log.file") {
		lc.Log.LogInFile = v.GetBool("log.file")
	}
	if special := v.GetStringMapString("log.modules"); len(special) > 0 {
		lc.Log.ModuleSpecialLevel = make(map[string]common.LOG_LEVEL, len(special))
		for name, lvl := range special {
			module, ok := common.ModuleByName(name)
			if !ok {
				return nil, errors.Errorf("log.modules: unknown module %q", name)
			}
			lc.Log.ModuleSpecialLevel[module] = common.ParseLogLevel(lvl)
		}
	}

	lc.HTTP = HTTPConfig{
		Listen:       v.GetString("http.listen"),
		StaticDir:    v.GetString("http.static"),
		AllowOrigins: v.GetString("http.origins"),
		SessionIdle:  v.GetDuration("http.session_idle"),
	}
	lc.GRPC = GRPCConfig{
		Listen:            v.GetString("grpc.listen"),
		KeepaliveTime:     v.GetDuration("grpc.keepalive_time"),
		KeepaliveTimeout:  v.GetDuration("grpc.keepalive_timeout"),
		ConnectionTimeout: v.GetDuration("grpc.connection_timeout"),
	}
	lc.Demo = demo.Config{
		LinearContainer:      v.GetString("demo.linear_container"),
		LogisticContainer:    v.GetString("demo.logistic_container"),
		LinearEpochs:         v.GetInt("demo.linear_epochs"),
		LogisticEpochs:       v.GetInt("demo.logistic_epochs"),
		LogisticPoints:       v.GetInt("demo.logistic_points"),
		GridResolution:       v.GetInt("demo.grid_resolution"),
		LinearLearningRate:   v.GetFloat64("demo.linear_learning_rate"),
		LogisticLearningRate: v.GetFloat64("demo.logistic_learning_rate"),
		BatchSize:            v.GetInt("demo.batch_size"),
		FitRetry:             v.GetBool("demo.fit_retry"),
		Seed:                 v.GetInt64("demo.seed"),
	}
	lc.KPI = KPIConfig{DataPath: v.GetString("kpi.data")}

	if err := lc.validate(); err != nil {
		return nil, err
	}
	return lc, nil
}

func (lc *LocalConfig) validate() error {
	d := lc.Demo
	switch {
	case d.LinearContainer == "" || d.LogisticContainer == "":
		return errors.New("demo containers must be named")
	case d.LinearContainer == d.LogisticContainer:
		return errors.Errorf("demo containers must differ, both are %q", d.LinearContainer)
	case d.LinearEpochs <= 0 || d.LogisticEpochs <= 0:
		return errors.Errorf("demo epochs must be positive, got %d/%d", d.LinearEpochs, d.LogisticEpochs)
	case d.LogisticPoints <= 0:
		return errors.Errorf("demo.logistic_points must be positive, got %d", d.LogisticPoints)
	case d.GridResolution < 2:
		return errors.Errorf("demo.grid_resolution must be at least 2, got %d", d.GridResolution)
	case d.BatchSize <= 0:
		return errors.Errorf("demo.batch_size must be positive, got %d", d.BatchSize)
	case d.LinearLearningRate <= 0 || d.LogisticLearningRate <= 0:
		return errors.New("demo learning rates must be positive")
	case lc.HTTP.Listen == "":
		return errors.New("http.listen is empty")
	case lc.HTTP.SessionIdle < 0:
		return errors.Errorf("http.session_idle must not be negative, got %s", lc.HTTP.SessionIdle)
	}
	return nil
}
