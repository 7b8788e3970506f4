package telemetry

import "testing"

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "default", modify: func(*Config) {}},
		{name: "missing service name", modify: func(c *Config) { c.ServiceName = "" }, wantErr: true},
		{name: "missing service version", modify: func(c *Config) { c.ServiceVersion = "" }, wantErr: true},
		{name: "bad level", modify: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: true},
		{name: "bad format", modify: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{
			name: "bad exporter",
			modify: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "zipkin"
			},
			wantErr: true,
		},
		{name: "bad sampling", modify: func(c *Config) { c.Tracing.SamplingRate = 1.5 }, wantErr: true},
		{
			name: "served metrics need a path",
			modify: func(c *Config) {
				c.Metrics.ListenAddress = ":9090"
				c.Metrics.Path = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
