// Command main fills the database with demo users, challenges, solves and posts.
package main

import (
	"flag"
	"log"

	"ctfarena/internal/config"
	"ctfarena/internal/database"
	"ctfarena/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numChallenges := flag.Int("challenges", 30, "Number of challenges to create")
	numPosts := flag.Int("posts", 100, "Number of posts to create")
	solveRate := flag.Int("solve-rate", 25, "Percent chance that a user solved a given challenge")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 picks one)")
	fast := flag.Bool("fast", false, "Skip bcrypt; seeded accounts cannot log in")
	flag.Parse()

	log.Printf("Target: %d users, %d challenges, %d posts, solve rate %d%%, clean=%v",
		*numUsers, *numChallenges, *numPosts, *solveRate, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sum, err := seed.Seed(db, seed.Options{
		NumUsers:      *numUsers,
		NumChallenges: *numChallenges,
		NumPosts:      *numPosts,
		SolveRate:     *solveRate,
		ShouldClean:   *shouldClean,
		Factory: seed.SeedOptions{
			Seed:       *randSeed,
			SkipBcrypt: *fast,
		},
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d users, %d challenges, %d solves, %d submissions, %d posts",
		sum.Users, sum.Challenges, sum.Solves, sum.Submissions, sum.Posts)
	if !*fast {
		log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
	}
}
