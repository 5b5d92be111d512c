// Command distribute runs the automatic reviewer distribution for one
// call, or for every published call when no id is given. Re-running is
// safe: the engine never double-assigns.
package main

import (
	"flag"
	"log"

	"call-review-api/config"
	"call-review-api/models"
	"call-review-api/services"

	"github.com/joho/godotenv"
)

func main() {
	callID := flag.Int("call", 0, "call id to distribute (0 = all published calls)")
	actorID := flag.Int("actor", 0, "user id recorded as the distribution actor")
	flag.Parse()

	if *actorID <= 0 {
		log.Fatal("-actor is required")
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	config.InitDB()

	var callIDs []int
	if *callID > 0 {
		callIDs = []int{*callID}
	} else {
		if err := config.DB.Model(&models.Call{}).
			Where("status = ? AND delete_at IS NULL", models.CallStatusPublished).
			Pluck("call_id", &callIDs).Error; err != nil {
			log.Fatalf("Failed to list published calls: %v", err)
		}
	}

	engine := services.NewDistributionService(config.DB)
	for _, id := range callIDs {
		result, err := engine.AutoDistribute(id, *actorID)
		if err != nil {
			log.Printf("call %d: distribution failed: %v", id, err)
			continue
		}
		log.Printf("call %d: processed=%d created=%d covered=%d pending=%d",
			id, result.ProposalsProcessed, result.AssignmentsCreated,
			result.FullyCovered, result.StillPending)
	}
}
