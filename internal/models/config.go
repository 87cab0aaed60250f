package models

// RepoConfig names a repository and the source types monitored on it.
type RepoConfig struct {
	Name         string       `mapstructure:"name" yaml:"name" validate:"required,repo_name"`
	MonitorTypes []SourceType `mapstructure:"monitor_types" yaml:"monitor_types" validate:"required,min=1,dive,source_type"`
}
