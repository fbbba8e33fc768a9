package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/yourorg/vacants-enricher/internal/env"
)

// Config carries every credential and tunable the enricher needs. It is
// built once in main and handed to constructors; nothing below cmd reads the
// environment.
type Config struct {
	AirtableAPIKey  string
	AirtableBaseID  string
	AirtableTable   string
	AirtableBaseURL string
	// StoreRatePerSecond caps requests against the record store.
	StoreRatePerSecond float64

	GoogleAPIKey   string
	GeocodeBaseURL string
	// GeocodeSuffix disambiguates street addresses to one municipality.
	GeocodeSuffix string

	ParcelBaseURL string
	ParcelRegion  string

	TaxBaseURL        string
	TaxLookupPath     string
	TaxAccountContext string
	TaxUserAgent      string

	BlockFields []string
	LotFields   []string

	Pause          time.Duration
	Interval       time.Duration
	RequestTimeout time.Duration
	HTTPRetryMax   int

	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	Port    int
	Verbose bool
}

// Default returns a Config with every non-secret field populated.
func Default() Config {
	return Config{
		AirtableTable:      "Vacants",
		AirtableBaseURL:    "https://api.airtable.com",
		StoreRatePerSecond: 5,
		GeocodeBaseURL:     "https://maps.googleapis.com",
		GeocodeSuffix:      "Jersey City, NJ",
		ParcelBaseURL:      "https://njparcels.com",
		ParcelRegion:       "0906",
		TaxBaseURL:         "http://taxes.cityofjerseycity.com",
		TaxLookupPath:      "/ViewPay",
		TaxAccountContext:  "115998",
		TaxUserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		BlockFields:        []string{"Block", "Block #", "Block Number", "BlockNumber"},
		LotFields:          []string{"Lot", "Lot #", "Lot Number", "LotNumber"},
		Pause:              time.Second,
		RequestTimeout:     15 * time.Second,
		HTTPRetryMax:       0,
		LockTTL:            2 * time.Hour,
		Port:               4010,
	}
}

// FromEnv overlays environment variables on Default and validates the result.
func FromEnv() (Config, error) {
	c := Default()
	c.AirtableAPIKey = env.Get("AIRTABLE_API_KEY", "")
	c.AirtableBaseID = env.Get("AIRTABLE_BASE_ID", "")
	c.AirtableTable = env.Get("AIRTABLE_TABLE", c.AirtableTable)
	c.AirtableBaseURL = env.Get("AIRTABLE_BASE_URL", c.AirtableBaseURL)
	c.StoreRatePerSecond = env.GetFloat("AIRTABLE_RATE", c.StoreRatePerSecond)

	c.GoogleAPIKey = env.Get("GOOGLE_API_KEY", "")
	c.GeocodeBaseURL = env.Get("GEOCODE_BASE_URL", c.GeocodeBaseURL)
	c.GeocodeSuffix = env.Get("GEOCODE_SUFFIX", c.GeocodeSuffix)

	c.ParcelBaseURL = env.Get("PARCEL_BASE_URL", c.ParcelBaseURL)
	c.ParcelRegion = env.Get("PARCEL_REGION", c.ParcelRegion)

	c.TaxBaseURL = env.Get("TAX_BASE_URL", c.TaxBaseURL)
	c.TaxLookupPath = env.Get("TAX_LOOKUP_PATH", c.TaxLookupPath)
	c.TaxAccountContext = env.Get("TAX_ACCOUNT_CONTEXT", c.TaxAccountContext)
	c.TaxUserAgent = env.Get("TAX_USER_AGENT", c.TaxUserAgent)

	c.BlockFields = env.GetList("ENRICH_BLOCK_FIELDS", c.BlockFields)
	c.LotFields = env.GetList("ENRICH_LOT_FIELDS", c.LotFields)

	c.Pause = env.GetDuration("ENRICH_PAUSE", c.Pause)
	c.Interval = env.GetDuration("ENRICH_INTERVAL", c.Interval)
	c.RequestTimeout = env.GetDuration("ENRICH_REQUEST_TIMEOUT", c.RequestTimeout)
	c.HTTPRetryMax = env.GetInt("HTTP_RETRY_MAX", c.HTTPRetryMax)

	c.PostgresDSN = env.Get("PG_DSN", "")
	c.RedisAddr = env.Get("REDIS_ADDR", "")
	c.RedisPassword = env.Get("REDIS_PASSWORD", "")
	c.RedisDB = env.GetInt("REDIS_DB", 0)
	c.LockTTL = env.GetDuration("ENRICH_LOCK_TTL", c.LockTTL)

	c.Port = env.GetInt("PORT", c.Port)
	c.Verbose = env.GetBool("ENRICH_VERBOSE", false)

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate reports every missing credential at once.
func (c Config) Validate() error {
	var errs []error
	if c.AirtableAPIKey == "" {
		errs = append(errs, errors.New("AIRTABLE_API_KEY is required"))
	}
	if c.AirtableBaseID == "" {
		errs = append(errs, errors.New("AIRTABLE_BASE_ID is required"))
	}
	if c.GoogleAPIKey == "" {
		errs = append(errs, errors.New("GOOGLE_API_KEY is required"))
	}
	if len(c.BlockFields) == 0 || len(c.LotFields) == 0 {
		errs = append(errs, errors.New("block and lot field names must not be empty"))
	}
	if c.Pause < 0 {
		errs = append(errs, fmt.Errorf("ENRICH_PAUSE must not be negative, got %s", c.Pause))
	}
	if c.HTTPRetryMax < 0 {
		errs = append(errs, fmt.Errorf("HTTP_RETRY_MAX must not be negative, got %d", c.HTTPRetryMax))
	}
	return errors.Join(errs...)
}
