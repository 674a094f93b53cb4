package config

const (
	defaultStateDir              = "~/.local/share/scancart"
	defaultLogDir                = "~/.local/share/scancart/logs"
	defaultReceiptsPath          = "~/.local/share/scancart/receipts.db"
	defaultAPIBind               = "127.0.0.1:7590"
	defaultClassifierURL         = "http://127.0.0.1:7591/predict"
	defaultClassifierTimeout     = 5
	defaultCameraDevice          = "/dev/video0"
	defaultDetectionThreshold    = 0.98
	defaultCooldownMS            = 3000
	defaultPaymentDelaySeconds   = 5
	defaultCurrencySymbol        = "₹"
	defaultQRSize                = 256
	defaultNotifyRequestTimeout  = 10
	defaultNotifyDedupWindowSecs = 300
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
)

// DefaultSentinelLabels returns the classifier labels that mean "nothing in view".
func DefaultSentinelLabels() []string {
	return []string{"background", "nothing"}
}

// DefaultCatalogItems returns the stock product table, priced in whole rupees.
func DefaultCatalogItems() map[string]int64 {
	return map[string]int64{
		"Grape nector juice": 60,
		"Colgate toothpaste": 40,
		"Lifebuoy soap":      25,
		"Pringles":           90,
		"Lays":               20,
		"Coca Cola":          35,
		"Fanta":              35,
		"Chocolate Chip":     50,
		"oreo":               45,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Classifier: Classifier{
			URL:            defaultClassifierURL,
			TimeoutSeconds: defaultClassifierTimeout,
		},
		Camera: Camera{
			Device:  defaultCameraDevice,
			Monitor: true,
		},
		Detection: Detection{
			Threshold:      defaultDetectionThreshold,
			CooldownMS:     defaultCooldownMS,
			SentinelLabels: DefaultSentinelLabels(),
		},
		Catalog: Catalog{
			Items: DefaultCatalogItems(),
		},
		Payment: Payment{
			DelaySeconds:   defaultPaymentDelaySeconds,
			CurrencySymbol: defaultCurrencySymbol,
			QRSize:         defaultQRSize,
		},
		Receipts: Receipts{
			Enabled: true,
			Path:    defaultReceiptsPath,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			UnknownItem:        true,
			Checkout:           true,
			Errors:             true,
			DedupWindowSeconds: defaultNotifyDedupWindowSecs,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
