package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wedding-bot/internal/driver"
	"wedding-bot/pkg/chat"
	"wedding-bot/pkg/content"
)

const minimalDrivers = `"drivers":[{"name":"line-main","type":"line","config":{"channel_secret":"s","channel_access_token":"t"}}]`

func writeConfigFile(t *testing.T, path string, contents string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("create config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func newTestRegistry(t *testing.T) *driver.Registry {
	t.Helper()

	registry, err := driver.NewBuiltinRegistry()
	if err != nil {
		t.Fatalf("new builtin registry: %v", err)
	}

	return registry
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    slog.Level
		wantErr bool
	}{
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "info", input: "info", want: slog.LevelInfo},
		{name: "warn", input: "warn", want: slog.LevelWarn},
		{name: "warning", input: "warning", want: slog.LevelWarn},
		{name: "error", input: "error", want: slog.LevelError},
		{name: "invalid", input: "trace", wantErr: true},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			got, err := parseLogLevel(testCase.input)
			if testCase.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if testCase.wantErr {
				return
			}
			if got != testCase.want {
				t.Fatalf("level = %v, want %v", got, testCase.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("loads all supported fields from config file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bot.json")
		writeConfigFile(t, configPath, `{
			"log_level":"warn",
			"kernel":{
				"module_hook_timeout":"7s",
				"shutdown_timeout":"15s",
				"subscription_buffer":64,
				"subscription_workers":5,
				"handler_timeout":"9s",
				"max_event_age":"40s"
			},
			`+minimalDrivers+`,
			"server":{
				"addr":":8080",
				"public_base_url":"https://bot.example.com/",
				"photo_dir":"photos",
				"table_dir":"tables",
				"max_table":30,
				"max_image_bytes":2048
			},
			"content":{
				"directory_ttl":"2m",
				"catalog_ttl":"1h",
				"table_names":{" 1 ":"主桌","2":"爸爸同學"},
				"photos_per_request":3,
				"staff_ids":[" U1 ",""],
				"consumer_idle_ttl":"12h",
				"max_consumers":500
			},
			"directory":{
				"sheets":{
					"spreadsheet_id_env":"WEDDINGBOT_TEST_SHEET",
					"range":"Guests!A:B",
					"credentials_file":"creds.json",
					"timeout":"4s"
				},
				"csv_path":"guests.csv"
			},
			"photo_tiers":[
				{"type":"gcs","timeout":"3s","config":{"bucket":"wedding"}},
				{"name":"album","type":"IMGUR","enabled":false,"config":{}},
				{"type":"local"}
			]
		}`)
		t.Setenv(envConfigFile, configPath)
		t.Setenv("WEDDINGBOT_TEST_SHEET", "sheet-123")

		cfg, err := loadConfig(newTestRegistry(t))
		if err != nil {
			t.Fatalf("load config failed: %v", err)
		}

		if cfg.logLevel != slog.LevelWarn {
			t.Fatalf("log level = %v, want warn", cfg.logLevel)
		}
		if cfg.moduleHookTimeout != 7*time.Second || cfg.shutdownTimeout != 15*time.Second {
			t.Fatalf("kernel timeouts = %s/%s", cfg.moduleHookTimeout, cfg.shutdownTimeout)
		}
		if cfg.subscriptionBuffer != 64 || cfg.subscriptionWorkers != 5 || cfg.handlerTimeout != 9*time.Second {
			t.Fatalf("subscription = %d/%d/%s", cfg.subscriptionBuffer, cfg.subscriptionWorkers, cfg.handlerTimeout)
		}
		if cfg.maxEventAge != 40*time.Second {
			t.Fatalf("max event age = %s, want 40s", cfg.maxEventAge)
		}
		if len(cfg.drivers) != 1 || cfg.drivers[0].Name != "line-main" || !cfg.drivers[0].Enabled {
			t.Fatalf("drivers = %+v", cfg.drivers)
		}
		if cfg.routingDefault == nil || cfg.routingDefault.Sink == nil {
			t.Fatal("expected derived default route")
		}
		if cfg.routingDefault.Sink.Platform != chat.PlatformLINE || cfg.routingDefault.Sink.ID != "line-main" {
			t.Fatalf("default sink = %+v", *cfg.routingDefault.Sink)
		}

		wantServer := serverSettings{
			addr:          ":8080",
			publicBaseURL: "https://bot.example.com",
			photoDir:      "photos",
			tableDir:      "tables",
			maxTable:      30,
			maxImageBytes: 2048,
		}
		if cfg.server != wantServer {
			t.Fatalf("server = %+v, want %+v", cfg.server, wantServer)
		}

		if cfg.content.directoryTTL != 2*time.Minute || cfg.content.catalogTTL != time.Hour {
			t.Fatalf("ttls = %s/%s", cfg.content.directoryTTL, cfg.content.catalogTTL)
		}
		if cfg.content.tableNames["1"] != "主桌" || cfg.content.tableNames["2"] != "爸爸同學" {
			t.Fatalf("table names = %v", cfg.content.tableNames)
		}
		if cfg.content.photosPerRequest != 3 {
			t.Fatalf("photos per request = %d, want 3", cfg.content.photosPerRequest)
		}
		if len(cfg.content.staffIDs) != 1 || cfg.content.staffIDs[0] != "U1" {
			t.Fatalf("staff ids = %v, want [U1]", cfg.content.staffIDs)
		}
		if cfg.content.consumerIdleTTL != 12*time.Hour || cfg.content.maxConsumers != 500 {
			t.Fatalf("consumer limits = %s/%d", cfg.content.consumerIdleTTL, cfg.content.maxConsumers)
		}

		wantDirectory := directorySettings{
			spreadsheetID:   "sheet-123",
			readRange:       "Guests!A:B",
			credentialsFile: "creds.json",
			timeout:         4 * time.Second,
			csvPath:         "guests.csv",
		}
		if cfg.directory != wantDirectory {
			t.Fatalf("directory = %+v, want %+v", cfg.directory, wantDirectory)
		}

		if len(cfg.tiers) != 3 {
			t.Fatalf("tiers len = %d, want 3", len(cfg.tiers))
		}
		if cfg.tiers[0].name != "gcs" || cfg.tiers[0].timeout != 3*time.Second || !cfg.tiers[0].enabled {
			t.Fatalf("tier[0] = %+v", cfg.tiers[0])
		}
		if cfg.tiers[1].name != "album" || cfg.tiers[1].typ != tierTypeImgur || cfg.tiers[1].enabled {
			t.Fatalf("tier[1] = %+v", cfg.tiers[1])
		}
		if cfg.tiers[2].name != "local" || cfg.tiers[2].timeout != defaultSourceLimit {
			t.Fatalf("tier[2] = %+v", cfg.tiers[2])
		}
	})

	t.Run("applies defaults for omitted sections", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bot.json")
		writeConfigFile(t, configPath, `{`+minimalDrivers+`}`)
		t.Setenv(envConfigFile, configPath)

		cfg, err := loadConfig(newTestRegistry(t))
		if err != nil {
			t.Fatalf("load config failed: %v", err)
		}
		if cfg.server.addr != defaultServerAddr || cfg.server.maxTable != defaultMaxTable {
			t.Fatalf("server = %+v", cfg.server)
		}
		if cfg.directory.spreadsheetID != "" || cfg.directory.csvPath != defaultGuestsFile {
			t.Fatalf("directory = %+v", cfg.directory)
		}
		if cfg.content.directoryTTL != defaultDirectoryTTL || cfg.content.photosPerRequest != defaultPhotosPerRequest {
			t.Fatalf("content = %+v", cfg.content)
		}
		if len(cfg.tiers) != 0 {
			t.Fatalf("tiers = %+v, want none", cfg.tiers)
		}
	})

	t.Run("loads fallback path bin/config/bot.json when no explicit path is set", func(t *testing.T) {
		workDir := t.TempDir()
		configPath := filepath.Join(workDir, "bin", "config", "bot.json")
		writeConfigFile(t, configPath, `{`+minimalDrivers+`,"server":{"addr":":9090"}}`)

		currentDir, err := os.Getwd()
		if err != nil {
			t.Fatalf("get working directory: %v", err)
		}
		if err := os.Chdir(workDir); err != nil {
			t.Fatalf("chdir to temp work dir: %v", err)
		}
		t.Cleanup(func() {
			if err := os.Chdir(currentDir); err != nil {
				t.Fatalf("restore working directory: %v", err)
			}
		})
		t.Setenv(envConfigFile, "")

		cfg, err := loadConfig(newTestRegistry(t))
		if err != nil {
			t.Fatalf("load config failed: %v", err)
		}
		if cfg.server.addr != ":9090" {
			t.Fatalf("server addr = %q, want :9090", cfg.server.addr)
		}
	})

	t.Run("invalid config values fail", func(t *testing.T) {
		tests := []struct {
			name       string
			fileJSON   string
			wantErrSub string
		}{
			{
				name:       "invalid log level",
				fileJSON:   `{"log_level":"trace",` + minimalDrivers + `}`,
				wantErrSub: "parse log_level",
			},
			{
				name:       "invalid kernel timeout",
				fileJSON:   `{"kernel":{"module_hook_timeout":"bad"},` + minimalDrivers + `}`,
				wantErrSub: "parse kernel.module_hook_timeout",
			},
			{
				name:       "non-positive kernel buffer",
				fileJSON:   `{"kernel":{"subscription_buffer":0},` + minimalDrivers + `}`,
				wantErrSub: "parse kernel.subscription_buffer",
			},
			{
				name:       "driver without config",
				fileJSON:   `{"drivers":[{"name":"line-main","type":"line"}]}`,
				wantErrSub: "parse drivers[0].config",
			},
			{
				name:       "no enabled driver",
				fileJSON:   `{"drivers":[{"name":"line-main","type":"line","enabled":false,"config":{}}]}`,
				wantErrSub: "at least one enabled driver",
			},
			{
				name:       "unknown driver type",
				fileJSON:   `{"drivers":[{"name":"x","type":"slack","config":{}}]}`,
				wantErrSub: "drivers[x].type",
			},
			{
				name:       "unknown routed module",
				fileJSON:   `{` + minimalDrivers + `,"routing":{"modules":{"pingpong":{"sources":[{"platform":"line"}],"sink":{"id":"line-main"}}}}}`,
				wantErrSub: "routing.modules.pingpong: unknown module",
			},
			{
				name:       "negative directory ttl",
				fileJSON:   `{` + minimalDrivers + `,"content":{"directory_ttl":"-1m"}}`,
				wantErrSub: "parse content.directory_ttl",
			},
			{
				name:       "photos per request above reply limit",
				fileJSON:   `{` + minimalDrivers + `,"content":{"photos_per_request":6}}`,
				wantErrSub: "parse content.photos_per_request",
			},
			{
				name:       "non-positive max table",
				fileJSON:   `{` + minimalDrivers + `,"server":{"max_table":0}}`,
				wantErrSub: "parse server.max_table",
			},
			{
				name:       "invalid sheets timeout",
				fileJSON:   `{` + minimalDrivers + `,"directory":{"sheets":{"timeout":"soon"}}}`,
				wantErrSub: "parse directory.sheets.timeout",
			},
			{
				name:       "photo tier without type",
				fileJSON:   `{` + minimalDrivers + `,"photo_tiers":[{"name":"x"}]}`,
				wantErrSub: "photo_tiers[0].type is required",
			},
			{
				name:       "unsupported photo tier",
				fileJSON:   `{` + minimalDrivers + `,"photo_tiers":[{"type":"dropbox"}]}`,
				wantErrSub: "unsupported type",
			},
			{
				name:       "duplicate photo tier",
				fileJSON:   `{` + minimalDrivers + `,"photo_tiers":[{"type":"local"},{"type":"local"}]}`,
				wantErrSub: "photo_tiers[local]: duplicate name",
			},
			{
				name:       "invalid photo tier timeout",
				fileJSON:   `{` + minimalDrivers + `,"photo_tiers":[{"type":"local","timeout":"0s"}]}`,
				wantErrSub: "parse photo_tiers[0].timeout",
			},
		}

		for _, testCase := range tests {
			testCase := testCase
			t.Run(testCase.name, func(t *testing.T) {
				configPath := filepath.Join(t.TempDir(), "bot.json")
				writeConfigFile(t, configPath, testCase.fileJSON)
				t.Setenv(envConfigFile, configPath)

				_, err := loadConfig(newTestRegistry(t))
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), testCase.wantErrSub) {
					t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSub)
				}
			})
		}
	})

	t.Run("missing explicit config file fails", func(t *testing.T) {
		t.Setenv(envConfigFile, filepath.Join(t.TempDir(), "missing.json"))
		if _, err := loadConfig(newTestRegistry(t)); err == nil {
			t.Fatal("expected error for missing config file")
		}
	})
}

func TestBuildContentRuntime(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := t.TempDir()
	guests := filepath.Join(root, "guests.csv")
	writeConfigFile(t, guests, "name,table\nAlice,3\nBob, 5 \n")
	tables := filepath.Join(root, "tables")
	writeConfigFile(t, filepath.Join(tables, "table_3.png"), "png")
	photoDir := filepath.Join(root, "pictures")
	writeConfigFile(t, filepath.Join(photoDir, "first dance.JPG"), "jpg")

	cfg := defaultAppConfig()
	cfg.directory.csvPath = guests
	cfg.server.tableDir = tables
	cfg.server.photoDir = photoDir
	cfg.server.publicBaseURL = "https://bot.example.com"
	cfg.content.tableNames = map[string]string{"3": "泡茶好朋友"}
	cfg.tiers = []tierDefinition{
		{name: "gcs", typ: tierTypeGCS, enabled: true, config: []byte(`{}`)},
		{name: "imgur", typ: tierTypeImgur, enabled: true, config: []byte(`{"album_hash":"abc"}`)},
		{name: "s3", typ: tierTypeS3, enabled: false},
		{name: "local", typ: tierTypeLocal, enabled: true, timeout: time.Second},
	}

	contents, err := buildContentRuntime(context.Background(), logger, cfg)
	if err != nil {
		t.Fatalf("build content runtime failed: %v", err)
	}
	defer contents.close(logger)

	seat := contents.service.LookupSeat(context.Background(), " Alice ")
	if seat.Status != content.SeatFound || seat.Table != "3" || seat.TableName != "泡茶好朋友" {
		t.Fatalf("seat = %+v", seat)
	}
	if !seat.ArtifactAvailable || seat.ArtifactName != "table_3.png" {
		t.Fatalf("seat artifact = %+v", seat)
	}
	if missing := contents.service.LookupSeat(context.Background(), "Carol"); missing.Status != content.SeatNotFound {
		t.Fatalf("missing seat status = %s, want not_found", missing.Status)
	}

	selection := contents.service.GetPhotos(context.Background(), 1, "U1")
	if selection.Status != content.PhotosOK || len(selection.Photos) != 1 {
		t.Fatalf("selection = %+v", selection)
	}
	if got, want := selection.Photos[0].URL, "https://bot.example.com/pictures/first%20dance.JPG"; got != want {
		t.Fatalf("photo url = %q, want %q", got, want)
	}

	statuses := contents.tierStatuses()
	wantEnabled := map[string]bool{"gcs": false, "imgur": false, "s3": false, "local": true}
	if len(statuses) != len(wantEnabled) {
		t.Fatalf("statuses = %+v", statuses)
	}
	for _, status := range statuses {
		if status.Enabled != wantEnabled[status.Name] {
			t.Fatalf("tier %s enabled = %v, want %v", status.Name, status.Enabled, wantEnabled[status.Name])
		}
	}
	if contents.photoDir == nil || contents.photoDir.Dir() != photoDir {
		t.Fatalf("photo dir = %+v, want %s", contents.photoDir, photoDir)
	}
}

func TestBuildContentRuntimeWithoutTiers(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := defaultAppConfig()
	cfg.directory.csvPath = filepath.Join(t.TempDir(), "missing.csv")
	cfg.server.tableDir = t.TempDir()

	contents, err := buildContentRuntime(context.Background(), logger, cfg)
	if err != nil {
		t.Fatalf("build content runtime failed: %v", err)
	}

	if got := contents.service.GetPhotos(context.Background(), 1, "U1").Status; got != content.PhotosUnavailable {
		t.Fatalf("photo status = %s, want unavailable", got)
	}
	if got := contents.service.LookupSeat(context.Background(), "Alice").Status; got != content.SeatUnavailable {
		t.Fatalf("seat status = %s, want unavailable", got)
	}
	if contents.photoDir != nil {
		t.Fatal("expected no photo dir without a local tier")
	}
}
