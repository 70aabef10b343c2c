package scheduler

import (
	"context"
	"time"

	"github.com/beamstore/beamstore/internal/database"
	"github.com/beamstore/beamstore/internal/transport"
	"github.com/mdouchement/logger"
	"github.com/robfig/cron/v3"
)

// maxTries bounds the retries of one orphan before it is dropped.
const maxTries = 20

// A Controller is an Inversion Of Control pattern used to init the scheduler package.
type Controller struct {
	Logger        logger.Logger
	Database      database.Client
	Transport     transport.Messenger
	Timeout       time.Duration
	Specification string
}

// Start launches the scheduler asynchronously. It periodically retries the
// deletion of orphaned transport messages left behind by failed rollback or
// removal deletes.
func Start(c Controller) {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}

	cron := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	log := c.Logger.WithPrefix("[scheduler]")

	_, err := cron.AddFunc(c.Specification, func() {
		log := c.Logger.WithPrefix("[orphans]")

		orphans, err := c.Database.AllOrphans()
		if err != nil {
			log.Error(err)
			return
		}

		for _, orphan := range orphans {
			ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
			err := c.Transport.DeleteMessages(ctx, []string{orphan.MessageID})
			cancel()

			if err == nil {
				if err = c.Database.DeleteOrphan(orphan.ID); err != nil {
					log.Error(err)
					return
				}

				log.Infof("Removed message %s", orphan.MessageID)
				continue
			}

			orphan.Tries++
			if orphan.Tries >= maxTries {
				log.Errorf("Giving up on message %s after %d tries: %s", orphan.MessageID, orphan.Tries, err)
				if err = c.Database.DeleteOrphan(orphan.ID); err != nil {
					log.Error(err)
					return
				}
				continue
			}

			log.Errorf("Could not remove message %s (try %d): %s", orphan.MessageID, orphan.Tries, err)
			if err = c.Database.Save(orphan); err != nil {
				log.Error(err)
				return
			}
		}
	})
	if err != nil {
		panic(err)
	}
	log.Info("Orphan cleanup task registred")

	cron.Start()
	log.Info("Scheduler is running")
}
