// Package profile holds per-site scraping configuration and the resolver
// that picks one for a page.
//
// A profile names CSS selectors by role, chooses a traversal strategy and
// carries that strategy's timings. Built-in profiles cover the galleries
// the tool started with; the config file's profiles section adds or
// overrides entries:
//
//	profiles:
//	  gallery.example.com:
//	    strategy: scroll
//	    normalize: data-src
//	    selectors:
//	      imageList: ".grid img"
//	      loadMoreControl: "button.more"
//	      loadingIndicator: ".spinner"
//	    options:
//	      load_more_wait: 15s
//
// Hosts without a profile get the "default" profile.
package profile
