package whisker

import (
	"errors"
	"net/http"
	"time"
)

const (
	DefaultAuthURL  = "https://cognito-idp.us-east-1.amazonaws.com/"
	DefaultClientID = "4552ujeu3aic90nf8qn53levmn"
	DefaultAPIURL   = "https://lr4.iothings.site/graphql"

	defaultTimeout      = 15 * time.Second
	defaultHistoryLimit = 100
)

var (
	// ErrAuth means the account rejected the credentials.
	ErrAuth = errors.New("whisker: authentication failed")
	// ErrUnauthorized means a token was rejected mid-session and could not be refreshed.
	ErrUnauthorized = errors.New("whisker: unauthorized")
	// ErrClosed is returned by calls on a closed session.
	ErrClosed = errors.New("whisker: session closed")
)

// Credentials for the Whisker account.
type Credentials struct {
	Username string
	Password string
}

// Config configures the client. Zero fields fall back to the defaults above.
type Config struct {
	AuthURL      string
	ClientID     string
	APIURL       string
	HistoryLimit int
	Timeout      time.Duration
	HTTPClient   *http.Client
}

func (c Config) withDefaults() Config {
	if c.AuthURL == "" {
		c.AuthURL = DefaultAuthURL
	}
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = defaultHistoryLimit
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return c
}

// tokens is the Cognito AuthenticationResult we keep.
type tokens struct {
	AccessToken  string `json:"AccessToken"`
	IDToken      string `json:"IdToken"`
	RefreshToken string `json:"RefreshToken"`
	ExpiresIn    int    `json:"ExpiresIn"`
}

// activityValues maps LR4 activity codes to the action text shown in the app.
var activityValues = map[string]string{
	"catWeight":                "Pet Weight Recorded",
	"catDetect":                "Cat Detected",
	"robotCycleStatusIdle":     "Clean Cycle Complete",
	"robotCycleStateCatDetect": "Cat Sensor Interrupted",
	"DFIFullFlagOn":            "Drawer Full",
	"robotPowerOn":             "Power On",
	"robotPowerOff":            "Power Off",
}
