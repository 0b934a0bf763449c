package extractor

// GenericTitleSelectors, GenericContentSelectors, and GenericDateSelectors
// are the bundled generic-selector map (spec §4.5 chain step b), tried in
// order when a recipe has none configured or its configured selector
// returns nothing usable. Exported so internal/recipeanalyzer can probe the
// same candidate list against a sample page when deriving a new recipe.
var (
	GenericTitleSelectors = []string{
		`h1[itemprop="headline"]`,
		`h1.article-title`,
		`article h1`,
		`h1.entry-title`,
		`h1.post-title`,
		`h1.headline`,
		`header h1`,
		`.post-title h1`,
		`main h1`,
		`h1`,
		`title`,
	}

	GenericContentSelectors = []string{
		`div[itemprop="articleBody"]`,
		`div.article-body`,
		`div.post-content`,
		`div.entry-content`,
		`[itemprop="articleBody"]`,
		`article .article-content`,
		`.article-body`,
		`section[itemprop="articleBody"]`,
		`div[class*="article-body"]`,
		`div[class*="rich-text"]`,
		`div[class*="post-body"]`,
		`div[class*="entry-content"]`,
		`[role="article"]`,
		`main article`,
		`article`,
		`main`,
	}

	GenericDateSelectors = []string{
		`meta[property="article:published_time"]`,
		`meta[name="publish-date"]`,
		`time[datetime]`,
		`[itemprop="datePublished"]`,
		`time.published`,
		`.publish-date`,
		`.article-date`,
		`.date`,
		`.timestamp`,
		`article time`,
		`.published-date`,
		`span[class*="date"]`,
		`span[class*="time"]`,
	}
)
