package registry

import (
	"fmt"
	"net/http"

	"stitch/internal/config"
	"stitch/internal/services"
	"stitch/internal/services/authentik"
	"stitch/internal/services/jellyfin"
	"stitch/internal/services/overseerr"
	"stitch/internal/services/plex"
)

// Build constructs a Directory for every enabled service in cfg. Construction
// is all-or-nothing so a typo in one service block surfaces before any
// enumeration starts.
func Build(cfg *config.Config) ([]services.Directory, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "registry", "build", "config is nil", nil)
	}
	enabled := cfg.EnabledServices()
	directories := make([]services.Directory, 0, len(enabled))
	for _, svc := range enabled {
		directory, err := buildOne(cfg, svc)
		if err != nil {
			return nil, err
		}
		directories = append(directories, directory)
	}
	return directories, nil
}

func buildOne(cfg *config.Config, svc config.Service) (services.Directory, error) {
	kind, ok := services.ParseType(svc.Type)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, svc.Name, "build directory",
			fmt.Sprintf("unsupported service type %q", svc.Type), nil)
	}

	// The client timeout backstops the per-call context deadlines applied
	// during enumeration.
	httpClient := &http.Client{Timeout: cfg.ServiceCallTimeout(svc)}

	var lister services.UserLister
	var err error
	switch kind {
	case services.TypePlex:
		lister, err = plex.NewClient(plex.Config{BaseURL: svc.URL, Token: svc.APIKey, Client: httpClient})
	case services.TypeJellyfin:
		lister, err = jellyfin.NewClient(jellyfin.Config{BaseURL: svc.URL, APIKey: svc.APIKey, Client: httpClient})
	case services.TypeEmby:
		lister, err = jellyfin.NewClient(jellyfin.Config{BaseURL: svc.URL, APIKey: svc.APIKey, Label: "emby", Client: httpClient})
	case services.TypeOverseerr:
		lister, err = overseerr.NewClient(overseerr.Config{BaseURL: svc.URL, APIKey: svc.APIKey, Client: httpClient})
	case services.TypeAuthentik:
		lister, err = authentik.NewClient(authentik.Config{BaseURL: svc.URL, Token: svc.APIKey, Client: httpClient})
	default:
		return nil, services.Wrap(services.ErrConfiguration, svc.Name, "build directory",
			fmt.Sprintf("no client for service type %q", kind), nil)
	}
	if err != nil {
		return nil, err
	}
	return services.Bind(svc.ID, kind, svc.Name, lister), nil
}
