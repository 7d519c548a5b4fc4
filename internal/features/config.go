package features

import (
	"github.com/spf13/viper"
)

func ReadOptions() Options {
	opts := DefaultOptions()
	if d := viper.GetDuration("evaluation.cache_ttl"); d > 0 {
		opts.CacheTTL = d
	}
	if d := viper.GetDuration("redeem.lock_ttl"); d > 0 {
		opts.RedeemLockTTL = d
	}
	return opts
}

func ReadPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:         viper.GetInt("worker.count"),
		QueueSize:       viper.GetInt("worker.queue_size"),
		MaxIdleTime:     viper.GetDuration("worker.max_idle_time"),
		MaxTaskWaitTime: viper.GetDuration("worker.max_task_wait_time"),
		JobTimeout:      viper.GetDuration("worker.job_timeout"),
	}
}

func ReadSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Schedule:   viper.GetString("sweeper.schedule"),
		StaleAfter: viper.GetDuration("sweeper.max_age"),
		BatchSize:  viper.GetInt("sweeper.batch_size"),
	}
}
