package timebank

import "time"

const dateLayout = "2006-01-02"

// Clock provides the current instant and the current calendar date in the
// user's timezone. The day boundary is midnight local time, not UTC.
type Clock interface {
	Now() time.Time
	Today() string // YYYY-MM-DD
}

type systemClock struct {
	loc *time.Location
}

// NewClock returns a Clock bound to the given IANA timezone name.
// "Local" or "" uses the server's local timezone.
func NewClock(timezone string) (Clock, error) {
	if timezone == "" {
		timezone = "Local"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return systemClock{loc: loc}, nil
}

func (c systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c systemClock) Today() string {
	return c.Now().Format(dateLayout)
}
