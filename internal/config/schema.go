package config

// Main mirrors the original's CHECK_CONFIG_MAIN: the required and
// optional keys of the [main] section.
type Main struct {
	DlogFile        string `ini:"dlog_file" validate:"required"`
	Include         string `ini:"include"`
	MaxLength       int    `ini:"max_length"` // accepted, never consumed — see spec Open Questions
	DiagnosticsAddr string `ini:"diagnostics_addr"`
}

// FileLogging mirrors CHECK_CONFIG_LOGGING['file:logging'].
type FileLogging struct {
	File      string `ini:"file" validate:"required"`
	Retention int    `ini:"retention" validate:"required,gt=0"`
	Level     string `ini:"level" validate:"required,oneof=CRITICAL ERROR WARNING INFO DEBUG"`
}

// SyslogLogging mirrors CHECK_CONFIG_LOGGING['syslog:logging'].
type SyslogLogging struct {
	Address  string `ini:"address" validate:"required"`
	Facility string `ini:"syslog_facility" validate:"omitempty,oneof=auth authpriv cron daemon ftp kern lpr mail news syslog user uucp local0 local1 local2 local3 local4 local5 local6 local7"`
	Level    string `ini:"level" validate:"required,oneof=CRITICAL ERROR WARNING INFO DEBUG"`
}

// SourceSection mirrors CHECK_CONFIG_SOURCE: the required/optional
// keys of a `<path>:source` section.
type SourceSection struct {
	SyslogFacility string `ini:"syslog_facility" validate:"required,oneof=LOG_KERN LOG_USER LOG_MAIL LOG_DAEMON LOG_AUTH LOG_LPR LOG_NEWS LOG_UUCP LOG_CRON LOG_SYSLOG LOG_LOCAL0 LOG_LOCAL1 LOG_LOCAL2 LOG_LOCAL3 LOG_LOCAL4 LOG_LOCAL5 LOG_LOCAL6 LOG_LOCAL7"`
	SyslogSeverity string `ini:"syslog_severity" validate:"required,oneof=LOG_EMERG LOG_ALERT LOG_CRIT LOG_ERR LOG_WARNING LOG_NOTICE LOG_INFO LOG_DEBUG"`
	SyslogTag      string `ini:"syslog_tag" validate:"required"`
	Tags           string `ini:"tags" validate:"required"`
	Template       string `ini:"template" validate:"required"`
	Regex          string `ini:"regex"`
	Encoding       string `ini:"encoding"`
}
