package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/imitation/backend/internal/model"
)

const githubUserURL = "https://api.github.com/user"

// githubUser is the part of GitHub's /user response we read.
type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"`
}

// GitHubProvider runs the OAuth authorization code flow against GitHub.
//
//  1. AuthURL sends the browser to GitHub with our client ID and a state
//  2. GitHub redirects back to the callback with a one-time code
//  3. Exchange trades the code for an access token server-to-server and
//     reads the user's profile with it
//
// The resulting identity's subject is "github:<numeric id>". The numeric ID
// never changes, unlike the login.
type GitHubProvider struct {
	config  *oauth2.Config
	userURL string
}

func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		userURL: githubUserURL,
	}
}

// AuthURL returns the GitHub authorization URL carrying state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the flow and returns the GitHub identity.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (model.Identity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return model.Identity{}, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// The client adds "Authorization: Bearer <token>" to every request.
	client := p.config.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userURL, nil)
	if err != nil {
		return model.Identity{}, fmt.Errorf("auth: building GitHub /user request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return model.Identity{}, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Identity{}, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var gh githubUser
	if err := json.NewDecoder(resp.Body).Decode(&gh); err != nil {
		return model.Identity{}, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}
	if gh.ID == 0 {
		return model.Identity{}, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	return model.Identity{
		Subject: "github:" + strconv.FormatInt(gh.ID, 10),
		Email:   gh.Email,
		Login:   gh.Login,
	}, nil
}
