package config

import (
	"encoding/json"
	"fmt"
)

// resolveFields resolves each raw value through ParseConfigValue and stores it
// in the matching destination.
func resolveFields(fields map[string]json.RawMessage, dest map[string]*string) error {
	for name, raw := range fields {
		value, err := ParseConfigValue(raw)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", name, err)
		}
		*dest[name] = value
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for AuthConfig
func (a *AuthConfig) UnmarshalJSON(data []byte) error {
	type rawAuth struct {
		Authority             json.RawMessage `json:"authority"`
		ClientID              json.RawMessage `json:"clientId"`
		ClientSecret          json.RawMessage `json:"clientSecret"`
		RedirectURI           json.RawMessage `json:"redirectUri"`
		PostLogoutRedirectURI json.RawMessage `json:"postLogoutRedirectUri"`
		Audience              json.RawMessage `json:"audience"`
		Scope                 string          `json:"scope"`
		AutomaticSilentRenew  *bool           `json:"automaticSilentRenew"`
		RenewTimeout          string          `json:"renewTimeout"`
		ClockSkew             string          `json:"clockSkew"`
	}

	var raw rawAuth
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var secret string
	err := resolveFields(
		map[string]json.RawMessage{
			"authority":             raw.Authority,
			"clientId":              raw.ClientID,
			"clientSecret":          raw.ClientSecret,
			"redirectUri":           raw.RedirectURI,
			"postLogoutRedirectUri": raw.PostLogoutRedirectURI,
			"audience":              raw.Audience,
		},
		map[string]*string{
			"authority":             &a.Authority,
			"clientId":              &a.ClientID,
			"clientSecret":          &secret,
			"redirectUri":           &a.RedirectURI,
			"postLogoutRedirectUri": &a.PostLogoutRedirectURI,
			"audience":              &a.Audience,
		},
	)
	if err != nil {
		return err
	}
	a.ClientSecret = Secret(secret)
	a.Scope = raw.Scope

	// Silent renew defaults to on, like the hosted client.
	a.AutomaticSilentRenew = true
	if raw.AutomaticSilentRenew != nil {
		a.AutomaticSilentRenew = *raw.AutomaticSilentRenew
	}

	if a.RenewTimeout, err = parseDuration("renewTimeout", raw.RenewTimeout, 0); err != nil {
		return err
	}
	if a.ClockSkew, err = parseDuration("clockSkew", raw.ClockSkew, 0); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for APIConfig
func (a *APIConfig) UnmarshalJSON(data []byte) error {
	type rawAPI struct {
		BaseURL           json.RawMessage `json:"baseURL"`
		Timeout           string          `json:"timeout"`
		RequestsPerSecond float64         `json:"requestsPerSecond"`
		Burst             int             `json:"burst"`
	}

	var raw rawAPI
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	baseURL, err := ParseConfigValue(raw.BaseURL)
	if err != nil {
		return fmt.Errorf("parsing baseURL: %w", err)
	}
	a.BaseURL = baseURL
	a.RequestsPerSecond = raw.RequestsPerSecond
	a.Burst = raw.Burst

	if a.Timeout, err = parseDuration("timeout", raw.Timeout, 0); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for WebConfig
func (w *WebConfig) UnmarshalJSON(data []byte) error {
	type rawWeb struct {
		Addr              string `json:"addr"`
		LoginPath         string `json:"loginPath"`
		CallbackPath      string `json:"callbackPath"`
		HomePath          string `json:"homePath"`
		GuardWait         string `json:"guardWait"`
		GuardPollInterval string `json:"guardPollInterval"`
		OpenBrowser       bool   `json:"openBrowser"`
	}

	var raw rawWeb
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	w.Addr = raw.Addr
	w.LoginPath = raw.LoginPath
	w.CallbackPath = raw.CallbackPath
	w.HomePath = raw.HomePath
	w.OpenBrowser = raw.OpenBrowser

	var err error
	if w.GuardWait, err = parseDuration("guardWait", raw.GuardWait, 0); err != nil {
		return err
	}
	if w.GuardPollInterval, err = parseDuration("guardPollInterval", raw.GuardPollInterval, 0); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for StorageConfig
func (s *StorageConfig) UnmarshalJSON(data []byte) error {
	type rawStorage struct {
		Kind            StorageKind     `json:"kind"`
		Path            json.RawMessage `json:"path"`
		RedisAddr       json.RawMessage `json:"redisAddr"`
		RedisPassword   json.RawMessage `json:"redisPassword"`
		RedisDB         int             `json:"redisDb"`
		GCPProject      json.RawMessage `json:"gcpProject"`
		Database        string          `json:"database"`
		Collection      string          `json:"collection"`
		EncryptionKey   json.RawMessage `json:"encryptionKey"`
		CleanupInterval string          `json:"cleanupInterval"`
	}

	var raw rawStorage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var password, key string
	err := resolveFields(
		map[string]json.RawMessage{
			"path":          raw.Path,
			"redisAddr":     raw.RedisAddr,
			"redisPassword": raw.RedisPassword,
			"gcpProject":    raw.GCPProject,
			"encryptionKey": raw.EncryptionKey,
		},
		map[string]*string{
			"path":          &s.Path,
			"redisAddr":     &s.RedisAddr,
			"redisPassword": &password,
			"gcpProject":    &s.GCPProject,
			"encryptionKey": &key,
		},
	)
	if err != nil {
		return err
	}

	s.Kind = raw.Kind
	s.RedisPassword = Secret(password)
	s.RedisDB = raw.RedisDB
	s.Database = raw.Database
	s.Collection = raw.Collection
	s.EncryptionKey = Secret(key)

	if s.CleanupInterval, err = parseDuration("cleanupInterval", raw.CleanupInterval, 0); err != nil {
		return err
	}
	return nil
}

// ApplyDefaults fills unset fields. Sections missing from the file never reach
// UnmarshalJSON, so defaults live here rather than in the decoders.
func (c *Config) ApplyDefaults() {
	if c.Auth.Scope == "" {
		c.Auth.Scope = DefaultScope
	}
	if c.Auth.RenewTimeout == 0 {
		c.Auth.RenewTimeout = DefaultRenewTimeout
	}
	if c.Auth.ClockSkew == 0 {
		c.Auth.ClockSkew = DefaultClockSkew
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.Web.Addr == "" {
		c.Web.Addr = DefaultAddr
	}
	if c.Web.LoginPath == "" {
		c.Web.LoginPath = DefaultLoginPath
	}
	if c.Web.CallbackPath == "" {
		c.Web.CallbackPath = DefaultCallbackPath
	}
	if c.Web.HomePath == "" {
		c.Web.HomePath = DefaultHomePath
	}
	if c.Web.GuardWait == 0 {
		c.Web.GuardWait = DefaultGuardWait
	}
	if c.Web.GuardPollInterval == 0 {
		c.Web.GuardPollInterval = DefaultGuardPollInterval
	}
	if c.Storage.Kind == "" {
		c.Storage.Kind = StorageKindMemory
	}
	if c.Storage.Collection == "" {
		c.Storage.Collection = DefaultCollection
	}
	if c.Storage.CleanupInterval == 0 {
		c.Storage.CleanupInterval = DefaultCleanupInterval
	}
}
