package main

import (
	"context"
	"errors"
	"log"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskhub/internal/config"
	"taskhub/internal/db"
	"taskhub/internal/model"
	"taskhub/internal/repository"
)

type seedUser struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
}

var seedUsers = []seedUser{
	{Name: "Admin", Email: "admin@taskhub.local", Password: "admin123", Role: model.RoleSuperAdmin},
	{Name: "Carla Client", Email: "carla@taskhub.local", Password: "secret123", Role: model.RoleClient},
	{Name: "Dan Developer", Email: "dan@taskhub.local", Password: "secret123", Role: model.RoleDeveloper},
	{Name: "Dora Developer", Email: "dora@taskhub.local", Password: "secret123", Role: model.RoleDeveloper},
}

func main() {
	log.Println("Starting seed script...")

	cfg := config.Load()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Project{},
		&model.ProjectMember{},
		&model.Task{},
	); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	ctx := context.Background()
	userRepo := repository.NewUserRepository(gormDB)
	projectRepo := repository.NewProjectRepository(gormDB)
	taskRepo := repository.NewTaskRepository(gormDB)

	users := make(map[string]*model.User, len(seedUsers))
	created := 0
	for _, su := range seedUsers {
		existing, err := userRepo.FindByEmail(ctx, su.Email)
		if err == nil {
			users[su.Email] = existing
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Fatalf("Failed to check user %s: %v", su.Email, err)
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(su.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		user := &model.User{
			Name:         su.Name,
			Email:        su.Email,
			PasswordHash: string(hashed),
			Role:         su.Role,
		}
		if err := userRepo.Create(ctx, user); err != nil {
			log.Fatalf("Failed to create user %s: %v", su.Email, err)
		}
		users[su.Email] = user
		created++
	}
	log.Printf("Users ready (%d created)", created)

	projects, _, err := projectRepo.List(ctx, repository.ProjectScope{}, repository.ProjectFilter{PerPage: 1})
	if err != nil {
		log.Fatalf("Failed to list projects: %v", err)
	}
	if len(projects) > 0 {
		log.Println("Projects already present, skipping demo data")
		log.Println("Seed completed")
		return
	}

	admin := users["admin@taskhub.local"]
	client := users["carla@taskhub.local"]
	dev1 := users["dan@taskhub.local"]
	dev2 := users["dora@taskhub.local"]

	project := &model.Project{
		Name:        "Taskhub onboarding",
		Description: "Demo project created by the seed script",
		Status:      model.ProjectStatusActive,
		CreatedByID: admin.ID,
	}
	members := []model.ProjectMember{
		{UserID: client.ID, Tag: model.MemberTagClient},
		{UserID: dev1.ID, Tag: model.MemberTagDeveloper},
		{UserID: dev2.ID, Tag: model.MemberTagDeveloper},
	}
	if err := projectRepo.Create(ctx, project, members); err != nil {
		log.Fatalf("Failed to create demo project: %v", err)
	}

	tasks := []model.Task{
		{
			ProjectID:      project.ID,
			Title:          "Set up environments",
			Status:         model.TaskStatusApproved,
			Priority:       model.TaskPriorityNormal,
			AssignedUserID: &dev1.ID,
			CreatedByID:    admin.ID,
		},
		{
			ProjectID:      project.ID,
			Title:          "Implement login flow",
			Status:         model.TaskStatusInProgress,
			Priority:       model.TaskPriorityUrgent,
			AssignedUserID: &dev2.ID,
			CreatedByID:    admin.ID,
		},
		{
			ProjectID:   project.ID,
			Title:       "Draft release checklist",
			Status:      model.TaskStatusPending,
			Priority:    model.TaskPriorityNormal,
			CreatedByID: admin.ID,
		},
	}
	for i := range tasks {
		if err := taskRepo.Create(ctx, &tasks[i]); err != nil {
			log.Fatalf("Failed to create demo task %q: %v", tasks[i].Title, err)
		}
	}
	log.Printf("Demo project created with %d tasks", len(tasks))
	log.Println("Seed completed")
}
