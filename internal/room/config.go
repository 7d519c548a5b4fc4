package room

import (
	"github.com/spf13/viper"
)

// ReadConfig overlays room.* settings on DefaultConfig.
func ReadConfig() Config {
	cfg := DefaultConfig()
	if d := viper.GetDuration("room.face_interval"); d > 0 {
		cfg.FaceInterval = d
	}
	if d := viper.GetDuration("room.connect_timeout"); d > 0 {
		cfg.ConnectTimeout = d
	}
	if d := viper.GetDuration("room.persist_timeout"); d > 0 {
		cfg.PersistTimeout = d
	}
	if d := viper.GetDuration("room.no_face_warn"); d > 0 {
		cfg.Thresholds.NoFaceWarn = d
	}
	if d := viper.GetDuration("room.no_face_limit"); d > 0 {
		cfg.Thresholds.NoFaceLimit = d
	}
	if d := viper.GetDuration("room.multi_face_limit"); d > 0 {
		cfg.Thresholds.MultiFaceLimit = d
	}
	if n := viper.GetInt("room.inbox_size"); n > 0 {
		cfg.InboxSize = n
	}
	return cfg
}
