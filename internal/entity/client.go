package entity

// ClientLoginData identifies the kiosk or onboarding app calling the API,
// taken from its access token.
type ClientLoginData struct {
	ID   string
	Name string
}
