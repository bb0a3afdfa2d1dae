package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4243"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// openFDA (510k, PMA, MAUDE, Recalls)
	FDABaseURL string `envconfig:"FDA_BASE_URL" default:"https://api.fda.gov"`
	FDAAPIKey  string `envconfig:"FDA_API_KEY"`

	// ClinicalTrials.gov v2
	ClinicalTrialsBaseURL string `envconfig:"CLINICALTRIALS_BASE_URL" default:"https://clinicaltrials.gov/api/v2"`

	// NIST CSRC Publications
	NISTBaseURL    string `envconfig:"NIST_BASE_URL" default:"https://csrc.nist.gov/publications/api/publications"`
	NISTSearchText string `envconfig:"NIST_SEARCH_TEXT" default:"cybersecurity"`

	// NCBI eutils (PubMed Central)
	PubMedBaseURL string `envconfig:"PUBMED_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	PubMedAPIKey  string `envconfig:"PUBMED_API_KEY"`
	PubMedEmail   string `envconfig:"PUBMED_EMAIL" default:"research@regintel.local"`
	PubMedTool    string `envconfig:"PUBMED_TOOL" default:"regintel-fetcher"`
	PubMedQuery   string `envconfig:"PUBMED_QUERY" default:"medical device regulatory approval"`

	// Espacenet OPS
	EspacenetBaseURL string `envconfig:"ESPACENET_BASE_URL" default:"https://ops.espacenet.com/3.2"`
	EspacenetQuery   string `envconfig:"ESPACENET_QUERY" default:"publicationDate within [20000101 20251231]"`

	// PatentsView / USPTO Patent Search
	PatentsViewBaseURL string `envconfig:"PATENTSVIEW_BASE_URL" default:"https://api.uspto.gov"`
	PatentsViewQuery   string `envconfig:"PATENTSVIEW_QUERY" default:"medical device"`

	// Regulations.gov (FDA Dockets)
	RegulationsGovBaseURL string `envconfig:"REGULATIONS_GOV_BASE_URL" default:"https://api.regulations.gov/v4"`
	RegulationsGovAPIKey  string `envconfig:"REGULATIONS_GOV_API_KEY"`

	// Pro Quelle gilt zusätzlich ein eigenes Page-Cap; das hier ist das globale Maximum.
	MaxPagesPerSource int `envconfig:"MAX_PAGES_PER_SOURCE" default:"50"`
	DefaultLimit      int `envconfig:"DEFAULT_LIMIT" default:"100"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`

	// Quellen-Konfiguration, kommasepariert
	EnabledSources string `envconfig:"ENABLED_SOURCES" default:"fda_510k,fda_pma,fda_maude,fda_recall,clinicaltrials,nist,pubmed,espacenet,patentsview,regulations_gov"`

	// S3-Backup (cmd/backup)
	BackupS3Key    string `envconfig:"BACKUP_S3_KEY"`
	BackupS3Secret string `envconfig:"BACKUP_S3_SECRET"`
	BackupS3URL    string `envconfig:"BACKUP_S3_URL"`
	BackupS3Region string `envconfig:"BACKUP_S3_REGION"`
	BackupS3Bucket string `envconfig:"BACKUP_S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
