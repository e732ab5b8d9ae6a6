package config

import (
	"errors"
	"log"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CreditPackage is one purchasable credit bundle. Prices are minor
// currency units (cents).
type CreditPackage struct {
	Key     string `mapstructure:"key" json:"key"`
	Credits int64  `mapstructure:"credits" json:"credits"`
	Price   int64  `mapstructure:"price" json:"price"`
}

type PackageCatalog struct {
	Packages []CreditPackage `mapstructure:"packages"`
}

func DefaultPackageCatalog() PackageCatalog {
	return PackageCatalog{
		Packages: []CreditPackage{
			{Key: "small", Credits: 10, Price: 900},
			{Key: "medium", Credits: 30, Price: 1900},
			{Key: "large", Credits: 100, Price: 2900},
		},
	}
}

// PackageCatalogHolder serves the current catalog and hot-reloads it
// when the config file changes.
type PackageCatalogHolder struct {
	current atomic.Value // holds PackageCatalog
}

func NewPackageCatalogHolder() (*PackageCatalogHolder, error) {
	v := viper.New()

	v.SetConfigName("packages")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/roomvision/config")
	v.AddConfigPath("/etc/roomvision")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ROOMVISION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &PackageCatalogHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultPackageCatalog())
		return holder, nil
	}

	var cfg PackageCatalog
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := validatePackageCatalog(cfg); err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PackageCatalog
		if err := v.Unmarshal(&updated); err != nil {
			log.Printf("[package-config] reload failed: %v", err)
			return
		}
		if err := validatePackageCatalog(updated); err != nil {
			log.Printf("[package-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[package-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PackageCatalogHolder) Get() PackageCatalog {
	return h.current.Load().(PackageCatalog)
}

// Find returns the package for a key, sorted lookup not needed at this size.
func (h *PackageCatalogHolder) Find(key string) (CreditPackage, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, pkg := range h.Get().Packages {
		if pkg.Key == key {
			return pkg, true
		}
	}
	return CreditPackage{}, false
}

// List returns packages ordered by price ascending.
func (h *PackageCatalogHolder) List() []CreditPackage {
	packages := append([]CreditPackage(nil), h.Get().Packages...)
	sort.Slice(packages, func(i, j int) bool {
		return packages[i].Price < packages[j].Price
	})
	return packages
}

func validatePackageCatalog(cfg PackageCatalog) error {
	if len(cfg.Packages) == 0 {
		return errors.New("packages cannot be empty")
	}
	seen := map[string]struct{}{}
	for _, pkg := range cfg.Packages {
		key := strings.ToLower(strings.TrimSpace(pkg.Key))
		if key == "" {
			return errors.New("package key cannot be empty")
		}
		if _, ok := seen[key]; ok {
			return errors.New("duplicate package key: " + key)
		}
		seen[key] = struct{}{}
		if pkg.Credits <= 0 {
			return errors.New("package credits must be positive: " + key)
		}
		if pkg.Price <= 0 {
			return errors.New("package price must be positive: " + key)
		}
	}
	return nil
}
