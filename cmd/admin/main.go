// Package main provides operator utilities for CTF Arena: role changes,
// challenge pack import and competition resets.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"ctfarena/internal/cache"
	"ctfarena/internal/config"
	"ctfarena/internal/database"
	"ctfarena/internal/models"
	"ctfarena/internal/notifications"
	"ctfarena/internal/repository"
	"ctfarena/internal/service"
	"ctfarena/internal/validation"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// operator is the actor recorded for CLI actions. It holds no account.
var operator = models.Actor{Role: models.RoleAdmin}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  admin promote <user_id>             - Promote user to admin")
	fmt.Println("  admin demote <user_id>              - Demote user from admin")
	fmt.Println("  admin list-admins                   - List all admins")
	fmt.Println("  admin import [-hidden] <pack.yaml>  - Import a challenge pack")
	fmt.Println("  admin reset-solves -yes             - Delete every solve")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()

	ctx := context.Background()
	command, args := os.Args[1], os.Args[2:]

	switch command {
	case "promote", "demote":
		if len(args) < 1 {
			fmt.Printf("Usage: admin %s <user_id>\n", command)
			os.Exit(1)
		}
		role := models.RoleAdmin
		if command == "demote" {
			role = models.RoleMember
		}
		err = setRole(ctx, db, rdb, cfg.JWTSecret, args[0], role)
	case "list-admins":
		err = listAdmins(ctx, db)
	case "import":
		err = importPack(ctx, db, rdb, args)
	case "reset-solves":
		err = resetSolves(ctx, db, rdb, args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func setRole(ctx context.Context, db *gorm.DB, rdb *redis.Client, secret, rawID string, role models.Role) error {
	id, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid user id %q", rawID)
	}
	users := service.NewUserService(repository.NewUserRepository(db), service.NewModerationGate(), rdb, secret)
	user, err := users.SetRole(ctx, operator, uint(id), role)
	if err != nil {
		return err
	}
	fmt.Printf("%s (ID: %d) is now %s\n", user.Username, user.ID, user.Role)
	return nil
}

func listAdmins(ctx context.Context, db *gorm.DB) error {
	admins, err := repository.NewUserRepository(db).ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		fmt.Println("No admins found")
		return nil
	}

	fmt.Println("Current admins:")
	for _, admin := range admins {
		fmt.Printf("  ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Username, admin.Email)
	}
	return nil
}

func importPack(ctx context.Context, db *gorm.DB, rdb *redis.Client, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	hidden := fs.Bool("hidden", false, "Import every challenge hidden, overriding the pack")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: admin import [-hidden] <pack.yaml>")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	pack, err := validation.ParseChallengePack(data)
	if err != nil {
		return err
	}

	challenges := service.NewChallengeService(repository.NewChallengeRepository(db), service.NewModerationGate(), rdb)
	created, err := challenges.Import(ctx, operator, pack.Challenges, pack.Hidden || *hidden)
	reportImport(os.Stdout, created, len(pack.Challenges), err)
	return err
}

// reportImport lists the challenges an import wrote. A failed import keeps
// the rows written before the failure, so they are listed as well.
func reportImport(w io.Writer, created []models.Challenge, total int, err error) {
	for _, c := range created {
		fmt.Fprintf(w, "  %d  %-40s %s/%s %d pts (%s)\n", c.ID, c.Title, c.Category, c.Difficulty, c.Points, c.Status)
	}
	if err != nil {
		if len(created) > 0 {
			fmt.Fprintf(w, "Imported %d of %d challenges before failing; remove or hide them before retrying\n", len(created), total)
		}
		return
	}
	fmt.Fprintf(w, "Imported %d challenges\n", len(created))
}

func resetSolves(ctx context.Context, db *gorm.DB, rdb *redis.Client, args []string) error {
	fs := flag.NewFlagSet("reset-solves", flag.ExitOnError)
	yes := fs.Bool("yes", false, "Confirm that every solve should be deleted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return fmt.Errorf("refusing to reset without -yes")
	}

	// Published synchronously below; the process exits right after.
	scoreboard := service.NewScoreboardService(
		repository.NewSolveRepository(db), repository.NewUserRepository(db), service.NewModerationGate(), nil, rdb)
	n, err := scoreboard.ResetSolves(ctx, operator)
	if err != nil {
		return err
	}
	if err := notifications.NewNotifier(rdb).PublishReset(ctx); err != nil {
		log.Printf("reset event not published: %v", err)
	}
	fmt.Printf("Deleted %d solves\n", n)
	return nil
}
