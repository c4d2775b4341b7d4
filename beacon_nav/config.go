package beacon_nav

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"beacon-nav/internal/logging"
)

// VisionConfig describes the camera frame and confidence smoothing.
type VisionConfig struct {
	FrameWidth       float64 `mapstructure:"frame_width" yaml:"frame_width" validate:"gt=0"`
	FrameHeight      float64 `mapstructure:"frame_height" yaml:"frame_height" validate:"gt=0"`
	ConfidenceWindow int     `mapstructure:"confidence_window" yaml:"confidence_window" validate:"gte=1"`
	HoldMs           int64   `mapstructure:"hold_ms" yaml:"hold_ms" validate:"gte=0"`
}

// Frame returns the configured frame geometry.
func (c VisionConfig) Frame() FrameGeometry {
	return FrameGeometry{Width: c.FrameWidth, Height: c.FrameHeight}
}

// LiveConfig controls UDP input settings for vision observations.
type LiveConfig struct {
	UDPAddr    string `mapstructure:"udp_addr" yaml:"udp_addr"`
	ReadBuffer int    `mapstructure:"read_buffer" yaml:"read_buffer" validate:"gte=0"`
}

// OutputConfig controls UDP output settings for motor commands.
type OutputConfig struct {
	UDPAddr string `mapstructure:"udp_addr" yaml:"udp_addr"`
}

// AppConfig aggregates all configuration sections.
type AppConfig struct {
	Hz      float64        `mapstructure:"hz" yaml:"hz" validate:"gt=0"`
	Vision  VisionConfig   `mapstructure:"vision" yaml:"vision"`
	Live    LiveConfig     `mapstructure:"live" yaml:"live"`
	Output  OutputConfig   `mapstructure:"output" yaml:"output"`
	Viz     VizConfig      `mapstructure:"viz" yaml:"viz"`
	Log     logging.Config `mapstructure:"log" yaml:"log"`
	Mission Mission        `mapstructure:"mission" yaml:"mission"`
	Sim     SimConfig      `mapstructure:"sim" yaml:"sim"`
}

// DefaultAlignment returns the gains used when a mission does not set them.
func DefaultAlignment() AlignmentParams {
	return AlignmentParams{
		Kp:            0.002,
		Kd:            0.05,
		MaxDurationMs: 8000,
		MinConfidence: 0.1,
		CloseEnoughPx: 150,
	}
}

// Default returns an AppConfig with the stock frame size, loop rate and a
// drive-then-align mission.
func Default() AppConfig {
	align := DefaultAlignment()
	return AppConfig{
		Hz: 50,
		Vision: VisionConfig{
			FrameWidth:       900,
			FrameHeight:      900,
			ConfidenceWindow: 5,
			HoldMs:           200,
		},
		Live: LiveConfig{
			UDPAddr:    "127.0.0.1:9100",
			ReadBuffer: 2048,
		},
		Viz: VizConfig{
			Enabled: false,
			Addr:    "127.0.0.1:7070",
		},
		Log: logging.Config{
			Level:      "info",
			Format:     "console",
			Output:     "stdout",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Mission: Mission{
			Alliance: AllianceRed,
			Steps: []MissionStep{
				{Name: "approach", Kind: TaskTimeDrive, Drive: &DriveParams{LeftPower: 0.5, RightPower: 0.5, DurationMs: 1000}},
				{Name: "align", Kind: TaskAlign, Align: &align},
			},
		},
		Sim: DefaultSim(),
	}
}

// SetDefaults registers scalar defaults with v so env overrides resolve.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("hz", d.Hz)

	v.SetDefault("vision.frame_width", d.Vision.FrameWidth)
	v.SetDefault("vision.frame_height", d.Vision.FrameHeight)
	v.SetDefault("vision.confidence_window", d.Vision.ConfidenceWindow)
	v.SetDefault("vision.hold_ms", d.Vision.HoldMs)

	v.SetDefault("live.udp_addr", d.Live.UDPAddr)
	v.SetDefault("live.read_buffer", d.Live.ReadBuffer)
	v.SetDefault("output.udp_addr", d.Output.UDPAddr)

	v.SetDefault("viz.enabled", d.Viz.Enabled)
	v.SetDefault("viz.addr", d.Viz.Addr)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
	v.SetDefault("log.file_path", d.Log.FilePath)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)

	v.SetDefault("mission.alliance", string(d.Mission.Alliance))

	v.SetDefault("sim.step_ms", d.Sim.StepMs)
	v.SetDefault("sim.max_ms", d.Sim.MaxMs)
	v.SetDefault("sim.target_x", d.Sim.TargetX)
	v.SetDefault("sim.target_y", d.Sim.TargetY)
	v.SetDefault("sim.target_width", d.Sim.TargetWidth)
	v.SetDefault("sim.focal_px", d.Sim.FocalPx)
	v.SetDefault("sim.max_speed", d.Sim.MaxSpeed)
	v.SetDefault("sim.track_width", d.Sim.TrackWidth)
	v.SetDefault("sim.fov_confidence_margin", d.Sim.FOVConfidenceMargin)
	v.SetDefault("sim.left_marker_red", d.Sim.LeftMarkerRed)
}

// BindEnv lets PREFIX_SECTION_KEY environment variables override any key,
// e.g. BEACON_LIVE_UDP_ADDR for live.udp_addr.
func BindEnv(v *viper.Viper, prefix string) {
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

var validate = validator.New()

// LoadConfig decodes v on top of Default and validates the result.
func LoadConfig(v *viper.Viper) (AppConfig, error) {
	cfg := Default()
	if v.IsSet("mission.steps") {
		cfg.Mission.Steps = nil
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	cfg.Mission.Alliance = Alliance(strings.ToUpper(string(cfg.Mission.Alliance)))
	if err := ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ValidateConfig checks every section and reports all failing fields.
func ValidateConfig(cfg AppConfig) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", fe.Namespace(), fe.ActualTag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
