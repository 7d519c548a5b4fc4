package service

import (
	"time"

	"github.com/spf13/viper"
)

type GeminiConfig struct {
	APIKey     string
	Model      string
	LiveModel  string
	Timeout    time.Duration
	BaseURL    string
	APIVersion string
}

func ReadGeminiConfig() *GeminiConfig {
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("gemini.live_model", "gemini-2.5-flash-native-audio-preview-09-2025")
	viper.SetDefault("gemini.timeout", "60s")

	return &GeminiConfig{
		APIKey:     viper.GetString("gemini.api_key"),
		Model:      viper.GetString("gemini.model"),
		LiveModel:  viper.GetString("gemini.live_model"),
		Timeout:    viper.GetDuration("gemini.timeout"),
		BaseURL:    viper.GetString("gemini.base_url"),
		APIVersion: viper.GetString("gemini.api_version"),
	}
}

type DetectorConfig struct {
	URL     string
	Timeout time.Duration
}

func ReadDetectorConfig() *DetectorConfig {
	viper.BindEnv("detector.url", "FACE_DETECTOR_URL")
	viper.SetDefault("detector.timeout", "2s")

	return &DetectorConfig{
		URL:     viper.GetString("detector.url"),
		Timeout: viper.GetDuration("detector.timeout"),
	}
}
