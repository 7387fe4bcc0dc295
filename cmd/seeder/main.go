//cmd/seeder/main.go
package main

import (
	"fmt"
	"log"
	"time"

	"github.com/brightline/outreach-backend/internal/config"
	"github.com/brightline/outreach-backend/internal/db"
	"github.com/brightline/outreach-backend/internal/model"
	"github.com/brightline/outreach-backend/internal/repository"
	"github.com/brightline/outreach-backend/internal/template"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	if err := db.Migrate(conn); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	fmt.Println("Migrations applied")

	repo := &repository.CampaignRepository{DB: conn}

	campaign := &model.Campaign{
		Name:            "Demo Outreach",
		WorkspaceID:     "T0DEMO",
		TargetChannel:   "C0DEMO",
		MessageTemplate: template.InitialContactID,
		Status:          model.CampaignDraft,
		Schedule: model.Schedule{
			StartTime: time.Now(),
			EndTime:   time.Now().Add(7 * 24 * time.Hour),
			Frequency: model.FrequencyOnce,
		},
		Variants: []model.Variant{
			{ID: "friendly", Name: "Friendly", Template: "Hey {{name}}! Quick question about {{product}}.", Distribution: 70, Status: model.VariantActive},
			{ID: "formal", Name: "Formal", Template: "Hello {{name}}, I wanted to reach out regarding {{product}}.", Distribution: 30, Status: model.VariantActive},
		},
	}

	if err := repo.Create(campaign); err != nil {
		log.Fatalf("failed to seed campaign: %v", err)
	}
	fmt.Printf("Seeded campaign %d\n", campaign.ID)

	users := []string{"U0ALICE", "U0BOB", "U0CAROL"}
	if err := repo.AddRecipients(campaign.ID, users); err != nil {
		log.Fatalf("failed to seed recipients: %v", err)
	}
	fmt.Printf("Seeded %d recipients\n", len(users))

	fmt.Println("Database seeding completed successfully!")
}
