package device

import (
	"github.com/kpszeniczka/temperature-calibration-system/internal/config"
	"github.com/kpszeniczka/temperature-calibration-system/internal/logger"
)

// New builds the furnace and multimeter pair selected by configuration.
// With simulators enabled the two are thermally coupled: the multimeter's
// channels track the simulated furnace cavity.
func New(cfg config.Devices, log *logger.Logger) (Furnace, Multimeter) {
	if cfg.UseSimulators {
		furnace := NewFurnaceSimulator()
		multimeter := NewMultimeterSimulator(furnace.CavityTemperature)
		log.Infow("using device simulators")
		return furnace, multimeter
	}
	return NewFurnace(log), NewMultimeter(log)
}
