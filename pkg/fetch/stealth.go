package fetch

// stealthScript runs before any page script and hides the usual headless giveaways.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });

Object.defineProperty(navigator, 'plugins', {
	get: () => [
		{ name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer' },
		{ name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai' },
		{ name: 'Native Client', filename: 'internal-nacl-plugin' },
	],
});

Object.defineProperty(navigator, 'languages', { get: () => ['en-GH', 'en-US', 'en'] });

Object.defineProperty(navigator, 'platform', { get: () => 'Win32' });

Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => 8 });

window.chrome = window.chrome || { runtime: {} };

if (window.navigator.permissions && window.navigator.permissions.query) {
	const originalQuery = window.navigator.permissions.query;
	window.navigator.permissions.query = (parameters) => (
		parameters.name === 'notifications'
			? Promise.resolve({ state: Notification.permission })
			: originalQuery(parameters)
	);
}
`
