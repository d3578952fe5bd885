package service

import (
	"context"
	"fmt"
	"log"

	"taskhub/internal/mail"
	"taskhub/internal/model"
	"taskhub/internal/repository"
)

// Notifier fans out task event mail. Dispatch is asynchronous and best-effort:
// the triggering mutation has already committed, so failures are logged and
// never surfaced to the caller.
type Notifier interface {
	TaskAssigned(ctx context.Context, project *model.Project, task *model.Task)
	TaskCompleted(ctx context.Context, project *model.Project, task *model.Task)
}

// Notification is one pending delivery to a single recipient.
type Notification struct {
	To      string
	Subject string
	Body    string
}

type notifier struct {
	userRepo    repository.UserRepository
	projectRepo repository.ProjectRepository
	mailer      mail.Mailer
	queue       chan Notification
	done        chan struct{}
}

// NewNotifier creates the notifier and starts its dispatch worker.
func NewNotifier(userRepo repository.UserRepository, projectRepo repository.ProjectRepository, mailer mail.Mailer) Notifier {
	n := &notifier{
		userRepo:    userRepo,
		projectRepo: projectRepo,
		mailer:      mailer,
		queue:       make(chan Notification, 256),
		done:        make(chan struct{}),
	}
	go n.dispatchWorker()
	return n
}

// dispatchWorker delivers queued notifications one recipient at a time. A
// failed delivery is logged and does not affect the remaining recipients.
func (n *notifier) dispatchWorker() {
	defer close(n.done)
	for msg := range n.queue {
		if err := n.mailer.Send(msg.To, msg.Subject, msg.Body); err != nil {
			log.Printf("notification delivery failed: to=%s: %v", msg.To, err)
		}
	}
}

func (n *notifier) enqueue(msg Notification) {
	select {
	case n.queue <- msg:
	default:
		// Queue full: drop rather than block the request path.
		log.Printf("notification queue full, dropping mail to=%s", msg.To)
	}
}

// TaskAssigned notifies super admins, the assignee and all project members
// that a task has been assigned.
func (n *notifier) TaskAssigned(ctx context.Context, project *model.Project, task *model.Task) {
	recipients, err := n.recipients(ctx, project.ID, task.AssignedUserID, false)
	if err != nil {
		log.Printf("compute assignment recipients for task %d: %v", task.ID, err)
		return
	}
	subject := fmt.Sprintf("Task assigned: %s", task.Title)
	body := fmt.Sprintf(
		"<p>Task <strong>%s</strong> on project <strong>%s</strong> has been assigned.</p>"+
			"<p>Priority: %s</p>",
		task.Title, project.Name, task.Priority,
	)
	for _, user := range recipients {
		n.enqueue(Notification{To: user.Email, Subject: subject, Body: body})
	}
}

// TaskCompleted notifies super admins, the client members who must approve,
// the assignee and the developer members that a task reached completed.
func (n *notifier) TaskCompleted(ctx context.Context, project *model.Project, task *model.Task) {
	recipients, err := n.recipients(ctx, project.ID, task.AssignedUserID, true)
	if err != nil {
		log.Printf("compute completion recipients for task %d: %v", task.ID, err)
		return
	}
	subject := fmt.Sprintf("Task completed: %s", task.Title)
	body := fmt.Sprintf(
		"<p>Task <strong>%s</strong> on project <strong>%s</strong> has been completed and awaits client approval.</p>",
		task.Title, project.Name,
	)
	for _, user := range recipients {
		n.enqueue(Notification{To: user.Email, Subject: subject, Body: body})
	}
}

// recipients computes the deduplicated recipient set. Both events target the
// same users; only the ordering of assignee versus client members differs.
func (n *notifier) recipients(ctx context.Context, projectID uint, assigneeID *uint, completed bool) ([]model.User, error) {
	admins, err := n.userRepo.ListByRole(ctx, model.RoleSuperAdmin)
	if err != nil {
		return nil, fmt.Errorf("list super admins: %w", err)
	}

	members, err := n.projectRepo.Members(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project members: %w", err)
	}
	var clients, developers []model.User
	for _, m := range members {
		switch m.Tag {
		case model.MemberTagClient:
			clients = append(clients, m.User)
		case model.MemberTagDeveloper:
			developers = append(developers, m.User)
		}
	}

	var assignee []model.User
	if assigneeID != nil {
		user, err := n.userRepo.FindByID(ctx, *assigneeID)
		if err != nil {
			return nil, fmt.Errorf("find assignee: %w", err)
		}
		assignee = []model.User{*user}
	}

	if completed {
		return dedupeUsers(admins, clients, assignee, developers), nil
	}
	return dedupeUsers(admins, assignee, clients, developers), nil
}

// dedupeUsers concatenates the groups keeping the first occurrence per user ID.
func dedupeUsers(groups ...[]model.User) []model.User {
	seen := make(map[uint]struct{})
	var out []model.User
	for _, group := range groups {
		for _, user := range group {
			if _, ok := seen[user.ID]; ok {
				continue
			}
			seen[user.ID] = struct{}{}
			out = append(out, user)
		}
	}
	return out
}
