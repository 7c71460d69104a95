package providers

import (
	"os"
	"strings"

	"github.com/linkhub/linkhub/internal/config"
	"github.com/linkhub/linkhub/internal/models"
	"github.com/linkhub/linkhub/internal/statetoken"
)

// BuildRegistry constructs every known adapter from configuration and
// registers it. Providers without config blocks still register; their
// operations fail with MissingConfiguration only where credentials are
// actually required.
func BuildRegistry(cfg *config.Config, deps Deps, states *statetoken.Codec) *Registry {
	useUTLS := strings.TrimSpace(os.Getenv("LINKHUB_UTLS")) == "1"
	browser := NewBrowserClient(useUTLS, deps.HTTPTimeout)

	registry := NewRegistry()
	registry.Register(NewPlaid(cfg.Provider(models.ProviderPlaid), deps, states))
	registry.Register(NewStrava(cfg.Provider(models.ProviderStrava), deps, states))
	registry.Register(NewSpotify(cfg.Provider(models.ProviderSpotify), deps, states))
	registry.Register(NewHealth(cfg.Provider(models.ProviderHealth), deps, states))
	registry.Register(NewContacts(cfg.Provider(models.ProviderContacts), deps, states))
	registry.Register(NewGmail(cfg.Provider(models.ProviderGmail), deps, states))
	registry.Register(NewLocation(cfg.Provider(models.ProviderLocation), deps, states))
	registry.Register(NewBooks(cfg.Provider(models.ProviderBooks), deps, states, browser))
	return registry
}
