package detection

import "time"

// Config holds the detection thresholds and match lists.
// Adjust these to fine-tune detection sensitivity.
type Config struct {
	// Brute force: failed attempts from one IP within the window.
	BruteForceThreshold int           `yaml:"brute_force_threshold"`
	BruteForceWindow    time.Duration `yaml:"brute_force_window"`

	// Data exfiltration: transfers strictly above this many bytes.
	DataExfiltrationThreshold int64 `yaml:"data_exfiltration_threshold"`

	// Rate limiting: requests from one IP within the window.
	RateLimitThreshold int           `yaml:"rate_limit_threshold"`
	RateLimitWindow    time.Duration `yaml:"rate_limit_window"`

	// Credential stuffing: distinct usernames in failed logins from
	// one IP within the window.
	CredentialStuffingThreshold int           `yaml:"credential_stuffing_threshold"`
	CredentialStuffingWindow    time.Duration `yaml:"credential_stuffing_window"`

	// Anomalous time access: UTC hour-of-day range [start, end).
	AnomalousHoursStart int `yaml:"anomalous_hours_start"`
	AnomalousHoursEnd   int `yaml:"anomalous_hours_end"`

	// Match lists.
	HighRiskIPPrefixes  []string `yaml:"high_risk_ip_prefixes"`
	SensitiveResources  []string `yaml:"sensitive_resources"`
	PrivilegedAccounts  []string `yaml:"privileged_accounts"`
	NonPrivilegedUsers  []string `yaml:"non_privileged_users"`
	PrivilegedActions   []string `yaml:"privileged_actions"`
	SQLInjectionPattern []string `yaml:"sql_injection_patterns"`
	SuspiciousPaths     []string `yaml:"suspicious_paths"`

	// QueryTimeout bounds each rule's window-store round trip.
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// DefaultConfig returns the default detection configuration.
func DefaultConfig() Config {
	return Config{
		BruteForceThreshold:         5,
		BruteForceWindow:            5 * time.Minute,
		DataExfiltrationThreshold:   10 * 1024 * 1024, // 10 MiB
		RateLimitThreshold:          100,
		RateLimitWindow:             time.Minute,
		CredentialStuffingThreshold: 10,
		CredentialStuffingWindow:    5 * time.Minute,
		AnomalousHoursStart:         2,
		AnomalousHoursEnd:           5,
		HighRiskIPPrefixes: []string{
			"185.220.", // Tor exit nodes
			"45.142.",  // High-risk hosting
			"123.45.",  // Example suspicious range
		},
		SensitiveResources: []string{
			"/admin", "/database", "/config", "/system", "/api/admin",
		},
		PrivilegedAccounts: []string{
			"admin", "root", "administrator", "superuser", "sysadmin",
		},
		NonPrivilegedUsers: []string{
			"user1", "user2", "guest", "api_user",
		},
		PrivilegedActions: []string{
			"user_create", "user_delete", "permission_change",
		},
		SQLInjectionPattern: []string{
			"' or '1'='1", "' or 1=1", "union select", "drop table",
			"insert into", "delete from", "exec(", "execute(",
			"'; --", "' --", "/*", "*/", "xp_cmdshell", "0x", "char(",
			"concat(", "@@version", "information_schema",
		},
		SuspiciousPaths: []string{
			"/.env", "/wp-admin", "/admin", "/config.php",
			"/.git", "/phpmyadmin", "/backup.sql", "/.aws",
			"/etc/passwd", "../", "..\\", "/wp-config.php",
		},
		QueryTimeout: 5 * time.Second,
	}
}
