package selector

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brokenScript = `import { test, expect } from '@playwright/test';

test('test', async ({ page }) => {
  await page.goto('https://shop.example.com');
  await page.waitForSelector('.4rating', { state: 'visible' });
  await page.locator('.4rating').click();
  await page.locator(".rating4. 0251").click();
  await page.locator('button:has-text("Buy")').click();
  await page.locator('#search').fill('shoes');
});
`

const repairedScript = `import { test, expect } from '@playwright/test';

test('test', async ({ page }) => {
  await page.goto('https://shop.example.com');
  await page.waitForSelector('.\\34 rating', { state: 'visible' });
  await page.locator('.\\34 rating').click();
  await page.locator(".rating4.\\30 251").click();
  await page.locator('button:has-text("Buy")').click();
  await page.locator('#search').fill('shoes');
});
`

func TestRepairScript(t *testing.T) {
	out, fixes := RepairScript(brokenScript)
	assert.Equal(t, repairedScript, out)
	assert.Equal(t, []Fix{
		{Original: ".4rating", Fixed: `.\34 rating`},
		{Original: ".4rating", Fixed: `.\34 rating`},
		{Original: ".rating4. 0251", Fixed: `.rating4.\30 251`},
	}, fixes)

	again, fixes := RepairScript(out)
	assert.Equal(t, out, again)
	assert.Empty(t, fixes)
}

func TestRepairScript_LeavesUnchangedCallsAlone(t *testing.T) {
	// A raw escape written by an older generator stays byte for byte.
	in := `await page.locator('.\34 rating').click();`
	out, fixes := RepairScript(in)
	assert.Equal(t, in, out)
	assert.Empty(t, fixes)

	// Quotes inside the selector end the match before the text argument.
	in = `await page.locator('span:has-text("4.5 stars")').click();`
	out, fixes = RepairScript(in)
	assert.Equal(t, in, out)
	assert.Empty(t, fixes)
}

func TestRepairFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "exports/a.spec.js", []byte(brokenScript), 0o644))
	require.NoError(t, afero.WriteFile(fs, "exports/nested/b.test.js", []byte(repairedScript), 0o644))
	require.NoError(t, afero.WriteFile(fs, "exports/c.node.js", []byte(`page.locator('.1st').click();`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "exports/notes.md", []byte(`locator('.4rating')`), 0o644))

	summary, err := RepairFiles(context.Background(), fs, "exports", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 2, summary.Changed)
	assert.Equal(t, 0, summary.Failed)
	assert.Len(t, summary.Fixes(), 4)

	got, err := afero.ReadFile(fs, "exports/a.spec.js")
	require.NoError(t, err)
	assert.Equal(t, repairedScript, string(got))

	got, err = afero.ReadFile(fs, "exports/c.node.js")
	require.NoError(t, err)
	assert.Equal(t, `page.locator('.\\31 st').click();`, string(got))

	got, err = afero.ReadFile(fs, "exports/notes.md")
	require.NoError(t, err)
	assert.Equal(t, `locator('.4rating')`, string(got))

	second, err := RepairFiles(context.Background(), fs, "exports", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Changed)
}

func TestRepairFiles_MissingRoot(t *testing.T) {
	_, err := RepairFiles(context.Background(), afero.NewMemMapFs(), "nowhere", nil, nil)
	require.Error(t, err)
}
