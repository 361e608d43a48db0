package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
)

type quarterJobs interface {
	GenerateRequirements(ctx context.Context, periodID string) (*models.GenerationResult, error)
	GetOverdueRequirements(ctx context.Context) ([]models.OverdueRequirement, error)
	MarkOverdue(ctx context.Context) (int64, error)
}

type tokenIssuer interface {
	Issue(userID string, role models.UserRole, email, fullName string) (string, time.Time, error)
}

type cli struct {
	out      io.Writer
	tokens   tokenIssuer
	quarters func(ctx context.Context) (quarterJobs, func(), error)
}

var errUsage = errors.New("invalid usage")

func (a *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		usage(a.out)
		return errUsage
	}
	switch args[0] {
	case "generate-requirements":
		return a.generate(ctx, args[1:])
	case "overdue":
		return a.overdue(ctx, args[1:])
	case "token":
		return a.token(args[1:])
	case "help", "-h", "--help":
		usage(a.out)
		return nil
	default:
		usage(a.out)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func (a *cli) generate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate-requirements", flag.ContinueOnError)
	fs.SetOutput(a.out)
	quarter := fs.String("quarter", "", "quarter period id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *quarter == "" {
		return fmt.Errorf("%w: -quarter is required", errUsage)
	}

	svc, closeFn, err := a.quarters(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	result, err := svc.GenerateRequirements(ctx, *quarter)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "quarter %s: %d candidates, %d created, %d skipped\n",
		result.QuarterPeriodID, result.Candidates, result.Created, result.Skipped)
	return nil
}

func (a *cli) overdue(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("overdue", flag.ContinueOnError)
	fs.SetOutput(a.out)
	mark := fs.Bool("mark", false, "set status OVERDUE on pending requirements past their deadline")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, closeFn, err := a.quarters(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if *mark {
		n, err := svc.MarkOverdue(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "marked %d requirements overdue\n", n)
	}

	reqs, err := svc.GetOverdueRequirements(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STUDENT\tQUARTER\tTERM\tDEADLINE\tREQUIRED\tPAID\tSTATUS")
	for _, r := range reqs {
		fmt.Fprintf(tw, "%s\tQ%d\t%s %s\t%s\t%s\t%s\t%s\n",
			r.StudentID, r.Quarter, r.Semester, r.AcademicYear,
			r.PaymentDeadline.Format("2006-01-02"),
			r.RequiredAmount.StringFixed(2), r.ActualAmount.StringFixed(2), r.Status)
	}
	return tw.Flush()
}

func (a *cli) token(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(a.out)
	user := fs.String("user", "", "user id placed in the token")
	role := fs.String("role", "", "role, e.g. STUDENT or DEAN")
	email := fs.String("email", "", "optional email claim")
	if err := fs.Parse(args); err != nil {
		return err
	}
	token, expiresAt, err := a.tokens.Issue(*user, models.UserRole(*role), *email, "")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, token)
	fmt.Fprintf(a.out, "# expires %s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}
