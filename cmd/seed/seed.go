package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/llm-relay/internal/cli"
	"github.com/nulzo/llm-relay/internal/store/model"
	"github.com/nulzo/llm-relay/internal/store/sqlite"
	"github.com/nulzo/llm-relay/pkg/api"
)

// Seeds a week of synthetic usage so the dashboard endpoints have something
// to show on a fresh database.
func main() {
	repo, err := sqlite.NewSQLiteStorage("relay.db")
	if err != nil {
		log.Fatal(err)
	}
	defer repo.Close()

	ctx := context.Background()

	type profile struct {
		provider  string
		model     string
		costPer1K float64
	}
	profiles := []profile{
		{"ollama", "llama3.1:8b", 0},
		{"ollama", "mistral-nemo", 0},
		{"groq", "llama3-8b-8192", 0.00005},
		{"groq", "llama3-70b-8192", 0.00059},
	}
	tasks := []string{
		api.TaskGeneral,
		api.TaskContentGeneration,
		api.TaskCoaching,
		api.TaskReasoning,
	}

	now := time.Now().UTC()
	var records []model.UsageRecord
	for i := 0; i < 500; i++ {
		p := profiles[rand.Intn(len(profiles))]
		tokens := 100 + rand.Intn(1500)
		success := rand.Float64() > 0.05

		rec := model.UsageRecord{
			ID:                  uuid.NewString(),
			ProviderName:        p.provider,
			ModelName:           p.model,
			TaskType:            tasks[rand.Intn(len(tasks))],
			ResponseTimeSeconds: 0.2 + rand.Float64()*3,
			WasFallback:         rand.Float64() < 0.1,
			Success:             success,
			CreatedAt:           now.Add(-time.Duration(rand.Intn(7*24)) * time.Hour),
		}
		if success {
			rec.TokensUsed = tokens
			rec.CostUSD = float64(tokens) / 1000.0 * p.costPer1K
		} else {
			rec.FailureClass = api.ClassTransientError
		}
		records = append(records, rec)
	}

	if err := repo.Usage().InsertBatch(ctx, records); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s Seeded %d usage records\n", cli.CheckMark(), len(records))
}
