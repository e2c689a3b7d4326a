package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileFilter(t *testing.T) {
	cases := []struct {
		name   string
		filter string
		want   string
	}{
		{
			name:   "and expression",
			filter: "sessions > 10 && medium == organic",
			want:   "ga:sessions>10;ga:medium==organic",
		},
		{
			name:   "or expression",
			filter: "medium =~ ^cpc$ || source != direct",
			want:   "ga:medium=~^cpc$,ga:source!=direct",
		},
		{
			name:   "quoted value keeps inner spaces",
			filter: "country == 'United States'",
			want:   "ga:country==United States",
		},
		{
			name:   "double quotes",
			filter: `pagePath =@ "/blog/"`,
			want:   "ga:pagePath=@/blog/",
		},
		{
			name:   "compound operators before simple ones",
			filter: "sessions >= 10 && bounces <= 5",
			want:   "ga:sessions>=10;ga:bounces<=5",
		},
		{
			name:   "negated substring and regexp",
			filter: "source !@ spam && referralPath !~ ^/ads",
			want:   "ga:source!@spam;ga:referralPath!~^/ads",
		},
		{
			name:   "collapses extra whitespace",
			filter: "  sessions   >    10  ",
			want:   "ga:sessions>10",
		},
		{
			name:   "empty",
			filter: "",
			want:   "",
		},
		{
			name:   "blank",
			filter: "   ",
			want:   "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CompileFilter(tc.filter))
		})
	}
}
