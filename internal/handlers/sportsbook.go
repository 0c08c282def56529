package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/ergochat/irc-go/ircfmt"

	"github.com/matt0x6f/garybot/internal/bot"
	"github.com/matt0x6f/garybot/internal/irc"
	"github.com/matt0x6f/garybot/internal/logger"
)

const (
	OddsBaseURL = "https://api.the-odds-api.com"

	defaultBookmaker = "unibet"
	defaultOddsTTL   = 60 * time.Minute
)

// SportKeys maps the league names users type to the odds API sport keys.
var SportKeys = map[string]string{
	"nfl": "americanfootball_nfl",
	"cfb": "americanfootball_ncaaf",
	"mlb": "baseball_mlb",
	"nhl": "icehockey_nhl",
	"nba": "basketball_nba",
}

type oddsOutcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point"`
}

type oddsMarket struct {
	Key      string        `json:"key"`
	Outcomes []oddsOutcome `json:"outcomes"`
}

type oddsGame struct {
	CommenceTime time.Time `json:"commence_time"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	Bookmakers   []struct {
		Key     string       `json:"key"`
		Markets []oddsMarket `json:"markets"`
	} `json:"bookmakers"`
}

type leagueOdds struct {
	games     []oddsGame
	fetchedAt time.Time
}

// Sportsbook answers .sb <league> <team> with moneyline and spread odds
// for the team's next game. League odds are cached for TTL.
type Sportsbook struct {
	BaseURL   string
	Key       string
	Bookmaker string
	TTL       time.Duration
	Client    *http.Client

	now      func() time.Time
	location *time.Location

	mu    sync.Mutex
	cache map[string]leagueOdds
}

func NewSportsbook(key string) *Sportsbook {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		loc = time.FixedZone("CST", -6*60*60)
	}
	return &Sportsbook{
		BaseURL:   OddsBaseURL,
		Key:       key,
		Bookmaker: defaultBookmaker,
		TTL:       defaultOddsTTL,
		now:       time.Now,
		location:  loc,
		cache:     make(map[string]leagueOdds),
	}
}

// sportsbookError is a failure the user is told about.
type sportsbookError string

func (e sportsbookError) Error() string { return string(e) }

func invalidQuery() error {
	leagues := make([]string, 0, len(SportKeys))
	for l := range SportKeys {
		leagues = append(leagues, l)
	}
	sort.Strings(leagues)
	return sportsbookError(fmt.Sprintf(
		"To use the sportsbook function, try: .sb [league] [city or team name]. Valid leagues are %s.",
		strings.Join(leagues, ", ")))
}

const (
	errNoOdds     = sportsbookError("The API returned no data. Try again later.")
	errNoGame     = sportsbookError("The API has no matchup for that city or team name.")
	errNoGameOdds = sportsbookError(`The API returned this matchup with no odds. ¯\_(ツ)_/¯`)
)

func (s *Sportsbook) Handle(ctx context.Context, ev *irc.Event, reply bot.Sender) error {
	msg, err := s.lookup(ctx, ev)
	var userErr sportsbookError
	if errors.As(err, &userErr) {
		return reply.Send(userErr.Error(), ev.Nick())
	}
	if err != nil {
		return err
	}
	return reply.Send(msg, "")
}

func (s *Sportsbook) lookup(ctx context.Context, ev *irc.Event) (string, error) {
	if ev.WordCount() < 3 {
		return "", invalidQuery()
	}
	sportKey, ok := SportKeys[strings.ToLower(ev.Word(1))]
	if !ok {
		return "", invalidQuery()
	}

	games, err := s.leagueOdds(ctx, sportKey)
	if err != nil {
		return "", err
	}
	if len(games) == 0 {
		return "", errNoOdds
	}

	team := strings.ToLower(ev.Rest(2))
	for _, g := range games {
		if strings.Contains(strings.ToLower(g.HomeTeam), team) || strings.Contains(strings.ToLower(g.AwayTeam), team) {
			return s.format(g)
		}
	}
	return "", errNoGame
}

func (s *Sportsbook) leagueOdds(ctx context.Context, sportKey string) ([]oddsGame, error) {
	s.mu.Lock()
	cached, ok := s.cache[sportKey]
	s.mu.Unlock()
	if ok && s.now().Sub(cached.fetchedAt) < s.TTL {
		return cached.games, nil
	}

	query := url.Values{
		"api_key":    {s.Key},
		"markets":    {"h2h,spreads"},
		"oddsFormat": {"american"},
		"dateFormat": {"iso"},
		"bookmakers": {s.Bookmaker},
	}
	resp, err := get(ctx, clientOrDefault(s.Client), s.BaseURL, "/v4/sports/"+sportKey+"/odds", query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, sportsbookError(fmt.Sprintf("Failed to fetch odds: status code %d.", resp.StatusCode))
	}
	var games []oddsGame
	if err := decodeJSON(resp, &games); err != nil {
		return nil, err
	}
	logger.Log.Debug().
		Str("sport", sportKey).
		Str("remaining", resp.Header.Get("x-requests-remaining")).
		Str("used", resp.Header.Get("x-requests-used")).
		Msg("Fetched league odds")

	s.mu.Lock()
	s.cache[sportKey] = leagueOdds{games: games, fetchedAt: s.now()}
	s.mu.Unlock()
	return games, nil
}

func (s *Sportsbook) format(g oddsGame) (string, error) {
	if len(g.Bookmakers) == 0 {
		return "", errNoGameOdds
	}
	markets := g.Bookmakers[0].Markets

	awayML, homeML := "None", "None"
	awaySpread, homeSpread := "None", "None"
	for _, m := range markets {
		switch m.Key {
		case "h2h":
			for _, o := range m.Outcomes {
				if o.Name == g.AwayTeam {
					awayML = formatNumber(o.Price)
				} else if o.Name == g.HomeTeam {
					homeML = formatNumber(o.Price)
				}
			}
		case "spreads":
			for _, o := range m.Outcomes {
				if o.Point == nil {
					continue
				}
				if o.Name == g.AwayTeam {
					awaySpread = formatNumber(*o.Point)
				} else if o.Name == g.HomeTeam {
					homeSpread = formatNumber(*o.Point)
				}
			}
		}
	}

	away, home := AbbreviateTeam(g.AwayTeam), AbbreviateTeam(g.HomeTeam)
	tipoff := g.CommenceTime.In(s.location).Format("Mon Jan 02, 03:04PM") + " CST"
	parts := []string{
		ircfmt.Escape(g.AwayTeam + " @ " + g.HomeTeam),
		fmt.Sprintf("$c[orange]Moneyline: %s %s %s %s$r", away, awayML, home, homeML),
		fmt.Sprintf("$c[light green]Spread: %s %s %s %s$r", away, awaySpread, home, homeSpread),
		"$c[grey]" + tipoff,
	}
	return ircfmt.Unescape(strings.Join(parts, " | ")), nil
}

// AbbreviateTeam shortens a team name. Names of three or more words are
// taken to start with a two word city and become its initials.
func AbbreviateTeam(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return ""
	}
	if len(words) > 2 {
		return string([]rune(words[0])[:1]) + string([]rune(words[1])[:1])
	}
	first := []rune(words[0])
	if len(first) > 3 {
		first = first[:3]
	}
	return strings.ToUpper(string(first))
}

func formatNumber(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if f > 0 {
		s = "+" + s
	}
	return s
}
