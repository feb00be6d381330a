package automation

import "fmt"

// fingerprintScript masks the usual headless-browser tells on every new
// document: webdriver flag, plugin list, hardware hints and screen metrics
// consistent with the chosen viewport.
func fingerprintScript(width, height int, platform string) string {
	return fmt.Sprintf(`() => {
		Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
		window.chrome = window.chrome || { runtime: {}, loadTimes: function() {}, csi: function() {}, app: {} };
		Object.defineProperty(navigator, 'plugins', {
			get: () => [
				{ name: 'PDF Viewer', filename: 'internal-pdf-viewer', description: 'Portable Document Format' },
				{ name: 'Chrome PDF Viewer', filename: 'internal-pdf-viewer', description: 'Portable Document Format' }
			]
		});
		Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
		Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => 8 });
		Object.defineProperty(navigator, 'deviceMemory', { get: () => 8 });
		Object.defineProperty(navigator, 'platform', { get: () => %q });
		const getParameter = WebGLRenderingContext.prototype.getParameter;
		WebGLRenderingContext.prototype.getParameter = function(parameter) {
			if (parameter === 37445) return 'Intel Inc.';
			if (parameter === 37446) return 'Intel Iris OpenGL Engine';
			return getParameter.apply(this, arguments);
		};
		Object.defineProperty(window.screen, 'width', { get: () => %d });
		Object.defineProperty(window.screen, 'height', { get: () => %d });
		Object.defineProperty(window.screen, 'availWidth', { get: () => %d });
		Object.defineProperty(window.screen, 'availHeight', { get: () => %d });
	}`, platform, width+100, height+100, width+100, height+60)
}
