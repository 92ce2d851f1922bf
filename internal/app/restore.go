package app

import "context"

// activateManifest restores the last READY deployment, then syncs the
// configured source over it. Both steps are best-effort: a server without a
// manifest still starts and reports errors until one is deployed.
func (a *App) activateManifest(ctx context.Context) {
	restored, err := a.Services.Manifest.Restore(ctx)
	if err != nil {
		a.logger.Warn("restore manifest failed", "error", err)
	}

	if a.Syncer == nil {
		if !restored {
			a.logger.Info("no manifest active; deploy one via POST /v1/deploy")
		}
		return
	}

	changed, err := a.Syncer.SyncOnce(ctx)
	switch {
	case err != nil:
		a.logger.Warn("initial manifest sync failed", "restored", restored, "error", err)
	case changed:
		a.logger.Info("manifest loaded from source")
	default:
		a.logger.Info("restored manifest matches source")
	}
}
