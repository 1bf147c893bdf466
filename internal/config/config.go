package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Settings is the full application configuration, loaded from
// configs/config.yml with defaults for every calibration knob.
type Settings struct {
	Port    string  `mapstructure:"port"`
	Log     Log     `mapstructure:"log"`
	DB      DB      `mapstructure:"db"`
	Auth    Auth    `mapstructure:"auth"`
	Devices Devices `mapstructure:"devices"`
	Run     Run     `mapstructure:"run"`
	Budget  Budget  `mapstructure:"budget"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

type DB struct {
	Path string `mapstructure:"path"`
}

type Auth struct {
	SigningKey string `mapstructure:"signing_key"`
}

// Devices selects transports and default ports for the two instruments.
type Devices struct {
	UseSimulators  bool   `mapstructure:"use_simulators"`
	FurnacePort    string `mapstructure:"furnace_port"`
	MultimeterPort string `mapstructure:"multimeter_port"`
}

// Run holds the orchestration parameters for a calibration run. The timing
// fields are durations so tests can shrink them to millisecond scale.
type Run struct {
	ReferenceChannel     string        `mapstructure:"reference_channel"`
	Channels             []string      `mapstructure:"channels"`
	Points               []float64     `mapstructure:"points"`
	MaxPoints            int           `mapstructure:"max_points"`
	StabilityToleranceC  float64       `mapstructure:"stability_tolerance_c"`
	StabilityDwell       time.Duration `mapstructure:"stability_dwell"`
	StabilityPoll        time.Duration `mapstructure:"stability_poll"`
	EquilibriumSpreadC   float64       `mapstructure:"equilibrium_spread_c"`
	EquilibriumSettle    time.Duration `mapstructure:"equilibrium_settle"`
	ChannelSwitchDelay   time.Duration `mapstructure:"channel_switch_delay"`
	MeasurementsPerPoint int           `mapstructure:"measurements_per_point"`
	ParkingTemperatureC  float64       `mapstructure:"parking_temperature_c"`
	PauseSleep           time.Duration `mapstructure:"pause_sleep"`
}

// Budget holds the type-B uncertainty component magnitudes in °C.
// Thermocouple budgets double Reference and Drift and add ColdJunction.
type Budget struct {
	ReferenceC    float64 `mapstructure:"reference_c"`
	ResolutionC   float64 `mapstructure:"resolution_c"`
	StabilityC    float64 `mapstructure:"stability_c"`
	HomogeneityC  float64 `mapstructure:"homogeneity_c"`
	DriftC        float64 `mapstructure:"drift_c"`
	ColdJunctionC float64 `mapstructure:"cold_junction_c"`
}

// Defaults mirrors the rig's nominal operating parameters.
func Defaults() Settings {
	return Settings{
		Port: "8080",
		Log:  Log{Level: "info"},
		DB:   DB{Path: "calibration.db"},
		Devices: Devices{
			UseSimulators:  true,
			FurnacePort:    "COM3",
			MultimeterPort: "COM4",
		},
		Run: Run{
			ReferenceChannel:     "A0",
			Channels:             []string{"A0", "B0", "B1", "B2", "B3", "B4"},
			Points:               []float64{50, 100, 150, 200, 250},
			MaxPoints:            10,
			StabilityToleranceC:  0.5,
			StabilityDwell:       60 * time.Second,
			StabilityPoll:        time.Second,
			EquilibriumSpreadC:   0.3,
			EquilibriumSettle:    500 * time.Millisecond,
			ChannelSwitchDelay:   10 * time.Second,
			MeasurementsPerPoint: 10,
			ParkingTemperatureC:  30,
			PauseSleep:           500 * time.Millisecond,
		},
		Budget: Budget{
			ReferenceC:    0.01,
			ResolutionC:   0.001,
			StabilityC:    0.02,
			HomogeneityC:  0.05,
			DriftC:        0.01,
			ColdJunctionC: 0.5,
		},
	}
}

// Load reads configs/config.yml through viper and overlays it on Defaults.
// A missing config file is not an error; defaults apply.
func Load() (Settings, error) {
	v := viper.New()
	v.AddConfigPath("configs")
	v.SetConfigName("config")

	s := Defaults()
	setDefaults(v, s)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate rejects configurations the engine cannot run with.
func (s Settings) Validate() error {
	if s.Run.ReferenceChannel == "" {
		return fmt.Errorf("run.reference_channel must be set")
	}
	if s.Run.MeasurementsPerPoint < 1 {
		return fmt.Errorf("run.measurements_per_point must be >= 1")
	}
	if len(s.Run.Points) > s.Run.MaxPoints && s.Run.MaxPoints > 0 {
		return fmt.Errorf("run.points: at most %d calibration points are supported", s.Run.MaxPoints)
	}
	if s.Run.StabilityToleranceC <= 0 {
		return fmt.Errorf("run.stability_tolerance_c must be > 0")
	}
	if s.Run.EquilibriumSpreadC <= 0 {
		return fmt.Errorf("run.equilibrium_spread_c must be > 0")
	}
	return nil
}

func setDefaults(v *viper.Viper, s Settings) {
	v.SetDefault("port", s.Port)
	v.SetDefault("log.level", s.Log.Level)
	v.SetDefault("db.path", s.DB.Path)
	v.SetDefault("auth.signing_key", "change-me")
	v.SetDefault("devices.use_simulators", s.Devices.UseSimulators)
	v.SetDefault("devices.furnace_port", s.Devices.FurnacePort)
	v.SetDefault("devices.multimeter_port", s.Devices.MultimeterPort)
	v.SetDefault("run.reference_channel", s.Run.ReferenceChannel)
	v.SetDefault("run.channels", s.Run.Channels)
	v.SetDefault("run.points", s.Run.Points)
	v.SetDefault("run.max_points", s.Run.MaxPoints)
	v.SetDefault("run.stability_tolerance_c", s.Run.StabilityToleranceC)
	v.SetDefault("run.stability_dwell", s.Run.StabilityDwell)
	v.SetDefault("run.stability_poll", s.Run.StabilityPoll)
	v.SetDefault("run.equilibrium_spread_c", s.Run.EquilibriumSpreadC)
	v.SetDefault("run.equilibrium_settle", s.Run.EquilibriumSettle)
	v.SetDefault("run.channel_switch_delay", s.Run.ChannelSwitchDelay)
	v.SetDefault("run.measurements_per_point", s.Run.MeasurementsPerPoint)
	v.SetDefault("run.parking_temperature_c", s.Run.ParkingTemperatureC)
	v.SetDefault("run.pause_sleep", s.Run.PauseSleep)
	v.SetDefault("budget.reference_c", s.Budget.ReferenceC)
	v.SetDefault("budget.resolution_c", s.Budget.ResolutionC)
	v.SetDefault("budget.stability_c", s.Budget.StabilityC)
	v.SetDefault("budget.homogeneity_c", s.Budget.HomogeneityC)
	v.SetDefault("budget.drift_c", s.Budget.DriftC)
	v.SetDefault("budget.cold_junction_c", s.Budget.ColdJunctionC)
}
