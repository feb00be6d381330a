package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/jumperz11/Linkdinscrap/internal/bot"
	"github.com/jumperz11/Linkdinscrap/internal/config"
	"github.com/jumperz11/Linkdinscrap/internal/logging"
	"github.com/jumperz11/Linkdinscrap/internal/models"
)

// Rod drives a real browser through go-rod. It keeps a single page for the
// whole session; discovery and the engine are never concurrent so no locking
// is needed here.
type Rod struct {
	browser *rod.Browser
	page    *rod.Page
	cfg     *config.Config
	log     *logging.Logger

	searchURL string
	pageNum   int
}

func NewRod(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Rod, error) {
	l := launcher.New().Leakless(false).Headless(cfg.Pacing.Headless)
	u, err := l.Launch()
	if err != nil {
		return nil, bot.Automation("launch", err)
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, bot.Automation("connect", err)
	}
	browser = browser.MustIgnoreCertErrors(true)

	r := &Rod{browser: browser, cfg: cfg, log: log.With("module", "automation")}
	if err := r.newPage(); err != nil {
		browser.Close()
		return nil, err
	}
	if err := r.loadCookies(); err == nil {
		r.log.Debug("cookies loaded")
	}
	return r, nil
}

func (r *Rod) newPage() error {
	p, err := r.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return bot.Automation("new page", err)
	}
	p = p.Timeout(120 * time.Second)

	w := randRange(r.cfg.Pacing.ViewportWidthMin, r.cfg.Pacing.ViewportWidthMax)
	h := randRange(r.cfg.Pacing.ViewportHeightMin, r.cfg.Pacing.ViewportHeightMax)
	_ = p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: w, Height: h, DeviceScaleFactor: 1,
	})
	ua := r.cfg.Pacing.UserAgent
	if ua == "" {
		ua = userAgents[rand.Intn(len(userAgents))]
	}
	_ = proto.EmulationSetUserAgentOverride{UserAgent: ua, Platform: platformFor(ua)}.Call(p)
	_, _ = p.EvalOnNewDocument(fingerprintScript(w, h, platformFor(ua)))

	r.page = p
	r.log.Info("page initialized", "ua", ua, "viewport", fmt.Sprintf("%dx%d", w, h))
	return nil
}

func (r *Rod) Close() {
	if r.browser != nil {
		_ = r.browser.Close()
	}
}

// IsAuthenticated loads the feed and checks for logged-in chrome. When the
// cookie session is stale it attempts a credential login once.
func (r *Rod) IsAuthenticated(ctx context.Context) (bool, error) {
	if r.checkFeed() {
		return true, nil
	}
	if os.Getenv("LINKEDIN_EMAIL") == "" || os.Getenv("LINKEDIN_PASSWORD") == "" {
		return false, nil
	}
	if err := r.login(ctx); err != nil {
		r.log.Warn("login attempt failed", "err", err)
		return false, nil
	}
	if err := r.saveCookies(); err != nil {
		r.log.Warn("save cookies failed", "err", err)
	}
	return true, nil
}

func (r *Rod) checkFeed() bool {
	if err := r.page.Navigate(r.cfg.LinkedIn.BaseURL + "feed/"); err != nil {
		return false
	}
	if err := r.page.WaitLoad(); err != nil {
		return false
	}
	for _, sel := range []string{"nav.global-nav", "[class*='global-nav']", "a[href*='/feed/']"} {
		if hasElement(r.page, sel) {
			return true
		}
	}
	return false
}

func (r *Rod) login(ctx context.Context) error {
	email := os.Getenv("LINKEDIN_EMAIL")
	pass := os.Getenv("LINKEDIN_PASSWORD")

	if err := r.page.Navigate(r.cfg.LinkedIn.BaseURL + "login"); err != nil {
		return bot.Automation("login navigate", err)
	}
	if err := r.page.WaitLoad(); err != nil {
		return bot.Automation("login load", err)
	}

	user, err := r.page.Timeout(10 * time.Second).Element("input#username")
	if err != nil {
		return bot.Automation("login form", err)
	}
	if err := humanType(user, email); err != nil {
		return bot.Automation("type email", err)
	}
	pw, err := r.page.Timeout(5 * time.Second).Element("input#password")
	if err != nil {
		return bot.Automation("login form", err)
	}
	if err := humanType(pw, pass); err != nil {
		return bot.Automation("type password", err)
	}
	submit, err := r.page.Timeout(5 * time.Second).Element("button[type='submit']")
	if err != nil {
		return bot.Automation("login form", err)
	}
	if err := humanClick(r.page, submit); err != nil {
		return bot.Automation("submit login", err)
	}
	time.Sleep(4 * time.Second)

	info, err := r.page.Info()
	if err != nil {
		return bot.Automation("login verify", err)
	}
	if strings.Contains(info.URL, "/checkpoint") || hasElement(r.page, ".challenge-dialog") {
		return errors.New("login blocked by checkpoint, complete verification manually once")
	}
	if strings.Contains(info.URL, "/login") {
		return errors.New("still on login page after submit")
	}
	r.log.Info("login succeeded", "url", info.URL)
	return nil
}

// Search opens page 1 of a people search and extracts its entries.
func (r *Rod) Search(ctx context.Context, keywords string) ([]models.SearchResult, error) {
	r.searchURL = fmt.Sprintf("%ssearch/results/people/?keywords=%s&origin=GLOBAL_SEARCH_HEADER",
		r.cfg.LinkedIn.BaseURL, url.QueryEscape(keywords))
	r.pageNum = 1
	return r.loadResultsPage(ctx)
}

// NextPage advances the current query by one results page. An empty result
// means the query is exhausted.
func (r *Rod) NextPage(ctx context.Context) ([]models.SearchResult, error) {
	if r.searchURL == "" {
		return nil, bot.Automation("next page", errors.New("no search in progress"))
	}
	r.pageNum++
	return r.loadResultsPage(ctx)
}

func (r *Rod) loadResultsPage(ctx context.Context) ([]models.SearchResult, error) {
	pageURL := fmt.Sprintf("%s&page=%d", r.searchURL, r.pageNum)
	if err := r.page.Navigate(pageURL); err != nil {
		return nil, bot.Automation("navigate results", err)
	}
	if err := r.page.WaitLoad(); err != nil {
		return nil, bot.Automation("load results", err)
	}
	// Lazy-loaded entries only render after scrolling.
	humanScroll(r.page)
	time.Sleep(1500 * time.Millisecond)

	links := r.findProfileLinks()
	seen := map[string]bool{}
	var out []models.SearchResult
	for _, el := range links {
		href, err := el.Attribute("href")
		if err != nil || href == nil {
			continue
		}
		locator := normalizeProfileURL(r.cfg.LinkedIn.BaseURL, *href)
		id := externalID(locator)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		res := models.SearchResult{Locator: locator, ExternalID: id}
		if txt, err := el.Text(); err == nil {
			res.Name = firstLine(txt)
		}
		if card, err := el.Parent(); err == nil {
			if hl, err := card.Element("[class*='subtitle'], .entity-result__primary-subtitle"); err == nil {
				if txt, err := hl.Text(); err == nil {
					res.Headline = firstLine(txt)
				}
			}
		}
		out = append(out, res)
	}
	r.log.Info("results page extracted", "page", r.pageNum, "entries", len(out))
	return out, nil
}

// findProfileLinks tries progressively looser selector strategies; newer and
// older search result markups disagree on structure.
func (r *Rod) findProfileLinks() rod.Elements {
	if links, err := r.page.Timeout(5 * time.Second).Elements(`a[href*="/in/"][data-test-app-aware-link]`); err == nil && len(links) > 0 {
		return links
	}
	if links, err := r.page.Timeout(3 * time.Second).Elements(`.search-results-container a[href*="/in/"]`); err == nil && len(links) > 0 {
		return links
	}
	if items, err := r.page.Timeout(3 * time.Second).Elements(`ul[role="list"] li`); err == nil && len(items) > 0 {
		var links rod.Elements
		for _, item := range items {
			if a, err := item.Elements(`a[href*="/in/"]`); err == nil && len(a) > 0 {
				links = append(links, a[0])
			}
		}
		if len(links) > 0 {
			return links
		}
	}
	links, _ := r.page.Timeout(3 * time.Second).Elements(`a[href*="/in/"]`)
	return links
}

// Visit navigates to the candidate profile and extracts a snapshot. Every
// field past the external id is best-effort.
func (r *Rod) Visit(ctx context.Context, c models.Candidate) (*models.ProfileSnapshot, error) {
	if err := r.page.Navigate(c.Locator); err != nil {
		return nil, bot.Automation("visit", err)
	}
	if err := r.page.WaitLoad(); err != nil {
		return nil, bot.Automation("visit load", err)
	}
	humanScroll(r.page)

	snap := &models.ProfileSnapshot{ExternalID: externalID(c.Locator), Name: c.Name}
	if t := r.textOf("h1"); t != "" {
		snap.Name = t
	}
	snap.Headline = r.textOf(".text-body-medium.break-words, div[class*='headline']")
	snap.Location = r.textOf("span.text-body-small.inline.t-black--light, [class*='location']")
	snap.Company = r.textOf("button[aria-label*='Current company'], [data-field='experience_company_logo']")
	snap.About = r.textOf("#about ~ div .inline-show-more-text, section[data-section='summary']")

	if t := r.textOf("span.t-bold + span, .dist-value, a[href*='connections'] span"); t != "" {
		snap.TotalConnections = parseCount(t)
	}
	if t := r.textOf("[class*='shared-connections'], a[href*='mutual']"); t != "" {
		snap.MutualConnections = parseCount(t)
	}
	r.log.Debug("profile extracted", "id", snap.ExternalID, "name", snap.Name)
	return snap, nil
}

// Connect sends a connection request on the currently visited profile. The
// connect action sometimes hides behind a "More" menu.
func (r *Rod) Connect(ctx context.Context, message string) error {
	btn, err := r.page.Timeout(5*time.Second).ElementR("button", "/^Connect$/")
	if err != nil {
		more, merr := r.page.Timeout(5*time.Second).ElementR("button", "More")
		if merr != nil {
			return bot.Automation("connect button", err)
		}
		if err := humanClick(r.page, more); err != nil {
			return bot.Automation("open more menu", err)
		}
		time.Sleep(800 * time.Millisecond)
		btn, err = r.page.Timeout(5*time.Second).ElementR("div[role='button'], button, span", "Connect")
		if err != nil {
			return bot.Automation("connect menu item", err)
		}
	}
	if err := humanClick(r.page, btn); err != nil {
		return bot.Automation("click connect", err)
	}
	time.Sleep(time.Second)

	if message != "" {
		if addNote, err := r.page.Timeout(4*time.Second).ElementR("button", "Add a note"); err == nil {
			if err := humanClick(r.page, addNote); err == nil {
				if box, err := r.page.Timeout(4 * time.Second).Element("textarea[name='message'], textarea#custom-message"); err == nil {
					_ = humanType(box, truncateNote(message, 300))
				}
			}
		}
	}

	send, err := r.page.Timeout(5*time.Second).ElementR("button", "Send")
	if err != nil {
		// Some accounts get a "Send without a note" primary action instead.
		send, err = r.page.Timeout(3 * time.Second).Element("button[aria-label*='Send']")
		if err != nil {
			return bot.Automation("send invite", err)
		}
	}
	if err := humanClick(r.page, send); err != nil {
		return bot.Automation("send invite", err)
	}
	r.log.Info("connection request sent")
	return nil
}

// Follow follows the currently visited profile.
func (r *Rod) Follow(ctx context.Context) error {
	btn, err := r.page.Timeout(5*time.Second).ElementR("button", "/^Follow$/")
	if err != nil {
		more, merr := r.page.Timeout(4*time.Second).ElementR("button", "More")
		if merr != nil {
			return bot.Automation("follow button", err)
		}
		if err := humanClick(r.page, more); err != nil {
			return bot.Automation("open more menu", err)
		}
		time.Sleep(800 * time.Millisecond)
		btn, err = r.page.Timeout(4*time.Second).ElementR("div[role='button'], button, span", "Follow")
		if err != nil {
			return bot.Automation("follow menu item", err)
		}
	}
	if err := humanClick(r.page, btn); err != nil {
		return bot.Automation("click follow", err)
	}
	r.log.Info("profile followed")
	return nil
}

// CurrentUserProfile extracts the operator's own profile for target analysis.
func (r *Rod) CurrentUserProfile(ctx context.Context) (*models.TargetProfile, error) {
	if err := r.page.Navigate(r.cfg.LinkedIn.BaseURL + "in/me/"); err != nil {
		return nil, bot.Automation("own profile navigate", err)
	}
	if err := r.page.WaitLoad(); err != nil {
		return nil, bot.Automation("own profile load", err)
	}
	tp := &models.TargetProfile{
		Name:      r.textOf("h1"),
		Headline:  r.textOf(".text-body-medium.break-words, div[class*='headline']"),
		Industry:  r.textOf("[class*='industry']"),
		UpdatedAt: time.Now(),
	}
	if skills, err := r.page.Timeout(4 * time.Second).Elements("#skills ~ div span[aria-hidden='true']"); err == nil {
		for i, s := range skills {
			if i >= 10 {
				break
			}
			if txt, err := s.Text(); err == nil && strings.TrimSpace(txt) != "" {
				tp.Expertise = append(tp.Expertise, strings.TrimSpace(txt))
			}
		}
	}
	if tp.Name == "" {
		return nil, bot.Automation("own profile extract", errors.New("no name found"))
	}
	return tp, nil
}

func (r *Rod) textOf(sel string) string {
	el, err := r.page.Timeout(3 * time.Second).Element(sel)
	if err != nil {
		return ""
	}
	t, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(firstLine(t))
}

func cookiesPath() string { return filepath.Join(".cache", "cookies.json") }

func (r *Rod) loadCookies() error {
	b, err := os.ReadFile(cookiesPath())
	if err != nil {
		return err
	}
	var cookies []*proto.NetworkCookie
	if err := json.Unmarshal(b, &cookies); err != nil {
		return err
	}
	for _, c := range cookies {
		_, _ = proto.NetworkSetCookie{
			Domain: c.Domain, Name: c.Name, Value: c.Value, Path: c.Path,
			Expires: c.Expires, HTTPOnly: c.HTTPOnly, Secure: c.Secure,
		}.Call(r.page)
	}
	return nil
}

func (r *Rod) saveCookies() error {
	cookies, err := proto.StorageGetCookies{}.Call(r.page.Timeout(20 * time.Second))
	if err != nil {
		return err
	}
	b, _ := json.MarshalIndent(cookies.Cookies, "", "  ")
	_ = os.MkdirAll(filepath.Dir(cookiesPath()), 0o755)
	return os.WriteFile(cookiesPath(), b, 0o644)
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

func platformFor(ua string) string {
	switch {
	case strings.Contains(ua, "Macintosh"):
		return "MacIntel"
	case strings.Contains(ua, "Linux"):
		return "Linux x86_64"
	default:
		return "Win32"
	}
}

func hasElement(p *rod.Page, sel string) bool {
	_, err := p.Timeout(2 * time.Second).Element(sel)
	return err == nil
}

// normalizeProfileURL strips query params and makes relative hrefs absolute.
func normalizeProfileURL(base, u string) string {
	if i := strings.Index(u, "?"); i >= 0 {
		u = u[:i]
	}
	if !strings.HasPrefix(u, "http") {
		u = strings.TrimSuffix(base, "/") + u
	}
	return u
}

// externalID extracts the stable profile slug from a /in/<slug> locator.
func externalID(locator string) string {
	i := strings.Index(locator, "/in/")
	if i < 0 {
		return ""
	}
	id := locator[i+len("/in/"):]
	id = strings.Trim(id, "/")
	if j := strings.IndexAny(id, "/?#"); j >= 0 {
		id = id[:j]
	}
	return id
}

var countRe = regexp.MustCompile(`([\d,]+)\+?`)

// parseCount pulls "512" out of "512 connections" or "500+ connections".
func parseCount(s string) int {
	m := countRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	return n
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func truncateNote(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if i := strings.LastIndexByte(cut, ' '); i > max/2 {
		cut = cut[:i]
	}
	return cut
}

func randRange(min, max int) int {
	if min >= max {
		return min
	}
	return min + rand.Intn(max-min+1)
}
