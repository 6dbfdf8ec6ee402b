package cnf

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config – Variable pública amb les opcions de configuració
var Config map[string]string

// AppConfig – Configuració tipada per facilitar l'ús
type AppConfig struct {
	DBEngine string
	DBPath   string
	DBHost   string
	DBUser   string
	DBPass   string
	DBPort   string
	DBName   string
	Migrate  bool

	LogLevel string
	Env      string
	HTTPAddr string
	BaseURL  string

	MailEnabled  bool
	MailFrom     string
	MailSMTPHost string
	MailSMTPPort string

	UploadsRoot    string
	StorageBackend string
	S3Bucket       string
	S3Region       string

	SessionTTL time.Duration

	NotifySettingsPath    string
	AppealReminderEnabled bool

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	IMAPHost       string
	IMAPPort       string
	IMAPUser       string
	IMAPPass       string
	IMAPSentFolder string
	IMAPPoll       time.Duration
}

// LoadConfig carrega el fitxer en format clau=valor, ignorant línies buides o comentaris.
func LoadConfig(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("no s'ha pogut obrir el fitxer de configuració: %w", err)
	}
	defer file.Close()

	config := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if !strings.Contains(line, "=") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if value != "" {
			commentIdx := -1
			for _, marker := range []string{" #", "\t#", " ;", "\t;"} {
				if idx := strings.Index(value, marker); idx >= 0 && (commentIdx == -1 || idx < commentIdx) {
					commentIdx = idx
				}
			}
			if commentIdx >= 0 {
				value = strings.TrimSpace(value[:commentIdx])
			}
		}
		config[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error llegint config: %w", err)
	}

	Config = config
	return config, nil
}

// ApplyEnv sobreescriu les claus conegudes amb variables d'entorn del mateix nom.
func ApplyEnv(cfg map[string]string) map[string]string {
	if cfg == nil {
		cfg = map[string]string{}
	}
	for _, key := range knownKeys {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			cfg[key] = strings.TrimSpace(v)
		}
	}
	return cfg
}

var knownKeys = []string{
	"DB_ENGINE", "DB_PATH", "DB_HOST", "DB_USR", "DB_PASS", "DB_PORT", "DB_NAME", "DB_MIGRATE",
	"LOG_LEVEL", "ENVIRONMENT", "HTTP_ADDR", "BASE_URL",
	"MAIL_ENABLED", "MAIL_FROM", "MAIL_SMTP_HOST", "MAIL_SMTP_PORT",
	"UPLOADS_ROOT", "STORAGE_BACKEND", "S3_BUCKET", "S3_REGION",
	"SESSION_TTL_HOURS", "NOTIFY_SETTINGS_PATH", "APPEAL_REMINDER_ENABLED",
	"VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY", "VAPID_SUBJECT",
	"IMAP_HOST", "IMAP_PORT", "IMAP_USER", "IMAP_PASS", "IMAP_SENT_FOLDER", "IMAP_POLL_MINUTES",
}

// ParseConfig converteix map[string]string en AppConfig amb valors per defecte.
func ParseConfig(cfg map[string]string) (AppConfig, error) {
	ac := AppConfig{
		DBEngine:       strings.TrimSpace(cfg["DB_ENGINE"]),
		DBPath:         strings.TrimSpace(cfg["DB_PATH"]),
		DBHost:         strings.TrimSpace(cfg["DB_HOST"]),
		DBUser:         strings.TrimSpace(cfg["DB_USR"]),
		DBPass:         cfg["DB_PASS"],
		DBPort:         strings.TrimSpace(cfg["DB_PORT"]),
		DBName:         strings.TrimSpace(cfg["DB_NAME"]),
		LogLevel:       strings.TrimSpace(cfg["LOG_LEVEL"]),
		Env:            strings.TrimSpace(cfg["ENVIRONMENT"]),
		HTTPAddr:       strings.TrimSpace(cfg["HTTP_ADDR"]),
		BaseURL:        strings.TrimRight(strings.TrimSpace(cfg["BASE_URL"]), "/"),
		MailFrom:       strings.TrimSpace(cfg["MAIL_FROM"]),
		MailSMTPHost:   strings.TrimSpace(cfg["MAIL_SMTP_HOST"]),
		MailSMTPPort:   strings.TrimSpace(cfg["MAIL_SMTP_PORT"]),
		UploadsRoot:    strings.TrimSpace(cfg["UPLOADS_ROOT"]),
		StorageBackend: strings.ToLower(strings.TrimSpace(cfg["STORAGE_BACKEND"])),
		S3Bucket:       strings.TrimSpace(cfg["S3_BUCKET"]),
		S3Region:       strings.TrimSpace(cfg["S3_REGION"]),

		NotifySettingsPath: strings.TrimSpace(cfg["NOTIFY_SETTINGS_PATH"]),

		VAPIDPublicKey:  strings.TrimSpace(cfg["VAPID_PUBLIC_KEY"]),
		VAPIDPrivateKey: strings.TrimSpace(cfg["VAPID_PRIVATE_KEY"]),
		VAPIDSubject:    strings.TrimSpace(cfg["VAPID_SUBJECT"]),

		IMAPHost:       strings.TrimSpace(cfg["IMAP_HOST"]),
		IMAPPort:       strings.TrimSpace(cfg["IMAP_PORT"]),
		IMAPUser:       strings.TrimSpace(cfg["IMAP_USER"]),
		IMAPPass:       cfg["IMAP_PASS"],
		IMAPSentFolder: strings.TrimSpace(cfg["IMAP_SENT_FOLDER"]),
	}

	if ac.DBEngine == "" {
		ac.DBEngine = "sqlite"
	}
	if ac.DBPath == "" {
		ac.DBPath = "./sparta.db"
	}
	if ac.LogLevel == "" {
		ac.LogLevel = "info"
	}
	if ac.Env == "" {
		ac.Env = os.Getenv("ENVIRONMENT")
		if ac.Env == "" {
			ac.Env = "development"
		}
	}
	if ac.HTTPAddr == "" {
		ac.HTTPAddr = ":8080"
	}
	if ac.BaseURL == "" {
		ac.BaseURL = "http://localhost:8080"
	}
	if ac.MailFrom == "" {
		ac.MailFrom = "no-reply@localhost"
	}
	if ac.MailSMTPHost == "" {
		ac.MailSMTPHost = "localhost"
	}
	if ac.MailSMTPPort == "" {
		ac.MailSMTPPort = "25"
	}
	if ac.UploadsRoot == "" {
		ac.UploadsRoot = "./uploads"
	}
	if ac.StorageBackend == "" {
		ac.StorageBackend = "local"
	}
	if ac.StorageBackend != "local" && ac.StorageBackend != "s3" {
		return ac, fmt.Errorf("STORAGE_BACKEND desconegut: %s", ac.StorageBackend)
	}
	if ac.StorageBackend == "s3" && ac.S3Bucket == "" {
		return ac, fmt.Errorf("STORAGE_BACKEND=s3 requereix S3_BUCKET")
	}
	if ac.S3Region == "" {
		ac.S3Region = "eu-central-1"
	}
	if ac.NotifySettingsPath == "" {
		ac.NotifySettingsPath = "cnf/notifications.yaml"
	}
	if ac.VAPIDSubject == "" {
		ac.VAPIDSubject = "mailto:" + ac.MailFrom
	}
	if ac.IMAPPort == "" {
		ac.IMAPPort = "993"
	}
	if ac.IMAPSentFolder == "" {
		ac.IMAPSentFolder = "Sent"
	}

	var err error
	if ac.Migrate, err = parseBool(cfg, "DB_MIGRATE", true); err != nil {
		return ac, err
	}
	if ac.MailEnabled, err = parseBool(cfg, "MAIL_ENABLED", false); err != nil {
		return ac, err
	}
	if ac.AppealReminderEnabled, err = parseBool(cfg, "APPEAL_REMINDER_ENABLED", true); err != nil {
		return ac, err
	}
	hours, err := parseInt(cfg, "SESSION_TTL_HOURS", 12)
	if err != nil {
		return ac, err
	}
	ac.SessionTTL = time.Duration(hours) * time.Hour
	minutes, err := parseInt(cfg, "IMAP_POLL_MINUTES", 5)
	if err != nil {
		return ac, err
	}
	ac.IMAPPoll = time.Duration(minutes) * time.Minute

	return ac, nil
}

func parseBool(cfg map[string]string, key string, def bool) (bool, error) {
	v := strings.TrimSpace(cfg[key])
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return def, fmt.Errorf("valor booleà invàlid per %s: %q", key, v)
	}
	return b, nil
}

func parseInt(cfg map[string]string, key string, def int) (int, error) {
	v := strings.TrimSpace(cfg[key])
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def, fmt.Errorf("valor numèric invàlid per %s: %q", key, v)
	}
	return n, nil
}
