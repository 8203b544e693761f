package content

// Profile is the single owner record shown on the home and about pages.
type Profile struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Institution string `json:"institution"`
	Education   string `json:"education"`
	ImageURL    string `json:"imageUrl"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	WebsiteURL  string `json:"websiteUrl"`
	About       string `json:"about"`
}

type ResearchInterest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type TeachingInterest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Publication struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Venue   string `json:"venue"`
	Year    string `json:"year"`
	URL     string `json:"url,omitempty"`
}

type Talk struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Venue       string `json:"venue"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
}

type Activity struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Organization string `json:"organization"`
	Description  string `json:"description"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate,omitempty"`
}

// Lab is the single lab record. Members and research areas are plain strings
// identified by exact equality.
type Lab struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Research    []string `json:"research"`
	Members     []string `json:"members"`
	ImageURL    string   `json:"imageUrl,omitempty"`
}

func (r ResearchInterest) itemID() string { return r.ID }
func (t TeachingInterest) itemID() string { return t.ID }
func (p Publication) itemID() string      { return p.ID }
func (t Talk) itemID() string             { return t.ID }
func (a Activity) itemID() string         { return a.ID }

// Patch types carry optional fields explicitly; a nil pointer means the field
// is untouched.

type ProfilePatch struct {
	Name        *string `json:"name,omitempty"`
	Title       *string `json:"title,omitempty"`
	Institution *string `json:"institution,omitempty"`
	Education   *string `json:"education,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty"`
	WebsiteURL  *string `json:"websiteUrl,omitempty"`
	About       *string `json:"about,omitempty"`
}

type LabPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty"`
}

type PublicationPatch struct {
	Title   *string `json:"title,omitempty"`
	Authors *string `json:"authors,omitempty"`
	Venue   *string `json:"venue,omitempty"`
	Year    *string `json:"year,omitempty"`
	URL     *string `json:"url,omitempty"`
}

func (p PublicationPatch) apply(item Publication) Publication {
	applyString(&item.Title, p.Title)
	applyString(&item.Authors, p.Authors)
	applyString(&item.Venue, p.Venue)
	applyString(&item.Year, p.Year)
	applyString(&item.URL, p.URL)
	return item
}

type TalkPatch struct {
	Title       *string `json:"title,omitempty"`
	Venue       *string `json:"venue,omitempty"`
	Date        *string `json:"date,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (p TalkPatch) apply(item Talk) Talk {
	applyString(&item.Title, p.Title)
	applyString(&item.Venue, p.Venue)
	applyString(&item.Date, p.Date)
	applyString(&item.Description, p.Description)
	return item
}

type ActivityPatch struct {
	Title        *string `json:"title,omitempty"`
	Organization *string `json:"organization,omitempty"`
	Description  *string `json:"description,omitempty"`
	StartDate    *string `json:"startDate,omitempty"`
	EndDate      *string `json:"endDate,omitempty"`
}

func (p ActivityPatch) apply(item Activity) Activity {
	applyString(&item.Title, p.Title)
	applyString(&item.Organization, p.Organization)
	applyString(&item.Description, p.Description)
	applyString(&item.StartDate, p.StartDate)
	applyString(&item.EndDate, p.EndDate)
	return item
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
