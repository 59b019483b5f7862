package barcodeprovider

import (
	"fmt"
	"net/http"

	"github.com/erp/wooerp/internal/domain/barcode"
	"github.com/erp/wooerp/internal/infrastructure/config"
)

// FromConfig builds the configured providers in the configured order
func FromConfig(cfg config.BarcodeConfig, client *http.Client) ([]barcode.Provider, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.ProviderTimeout}
	}

	providers := make([]barcode.Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch name {
		case OpenFoodFactsName:
			providers = append(providers, NewOpenFoodFacts(client, ""))
		case OpenBeautyFactsName:
			providers = append(providers, NewOpenBeautyFacts(client, ""))
		case UPCItemDBName:
			providers = append(providers, NewUPCItemDB(client, "", cfg.UPCItemDBKey))
		default:
			return nil, fmt.Errorf("barcodeprovider: unknown provider %q", name)
		}
	}
	return providers, nil
}
