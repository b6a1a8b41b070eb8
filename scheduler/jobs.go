package scheduler

import (
	"context"
	"log"
	"time"

	"marketpulse/models"
	"marketpulse/services/alerts"

	"github.com/go-co-op/gocron"
	"gorm.io/gorm"
)

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron   *gocron.Scheduler
	db     *gorm.DB
	engine *alerts.Engine
}

// NewScheduler creates a new scheduler instance
func NewScheduler(db *gorm.DB, engine *alerts.Engine) *Scheduler {
	return &Scheduler{
		cron:   gocron.NewScheduler(time.UTC),
		db:     db,
		engine: engine,
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Evaluate user alerts every minute. The cache absorbs off-hours ticks,
	// so the cycle runs unconditionally.
	s.cron.Every(1).Minute().Do(func() {
		s.runAlertCycle()
	})

	// Deactivate expired alerts daily at 00:30
	s.cron.Every(1).Day().At("00:30").Do(func() {
		s.sweepExpiredAlerts()
	})

	// Cleanup old data weekly on Sunday at 01:00
	s.cron.Every(1).Week().Sunday().At("01:00").Do(func() {
		s.cleanupOldData()
	})

	s.cron.StartAsync()
	log.Println("Scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// runAlertCycle runs one alert evaluation pass
func (s *Scheduler) runAlertCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Second)
	defer cancel()

	result, err := s.engine.RunCycle(ctx)
	if err != nil {
		log.Printf("Alert cycle error: %v", err)
		return
	}
	if result.Checked > 0 {
		log.Printf("Alert cycle: checked %d, triggered %d", result.Checked, result.Triggered)
	}
}

// sweepExpiredAlerts deactivates alerts whose expiry has passed
func (s *Scheduler) sweepExpiredAlerts() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.engine.SweepExpired(ctx); err != nil {
		log.Printf("Error sweeping expired alerts: %v", err)
	}
}

// cleanupOldData removes old data to save storage
func (s *Scheduler) cleanupOldData() {
	log.Println("Cleaning up old data...")

	// Delete stored quotes not refreshed in the last 7 days
	sevenDaysAgo := time.Now().AddDate(0, 0, -7)
	if err := s.db.Where("timestamp < ?", sevenDaysAgo).Delete(&models.MarketQuote{}).Error; err != nil {
		log.Printf("Error cleaning up old quotes: %v", err)
	}

	// Delete triggered alerts older than 30 days
	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	if err := s.db.Where("is_triggered = ? AND triggered_at < ?", true, thirtyDaysAgo).
		Delete(&models.Alert{}).Error; err != nil {
		log.Printf("Error cleaning up old alerts: %v", err)
	}

	log.Println("Cleanup completed")
}
