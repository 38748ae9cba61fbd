package batch

import "context"

type attempt struct {
	name string
	run  func(ctx context.Context) error
}

// firstSuccess runs attempts in order and stops at the first one that succeeds.
// It returns the winning attempt's name and the errors of the ones that failed before it.
func firstSuccess(ctx context.Context, attempts ...attempt) (string, []error) {
	var errs []error
	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			return "", append(errs, err)
		}
		err := a.run(ctx)
		if err == nil {
			return a.name, errs
		}
		errs = append(errs, err)
	}
	return "", errs
}
